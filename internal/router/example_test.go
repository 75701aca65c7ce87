package router

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

func ExampleRouter_GetPing() {
	env := setupTestRouter(nil)
	defer env.server.Close()

	resp, err := http.Get(env.server.URL + "/ping")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status Code:", resp.StatusCode)

	// Output:
	// Status Code: 200
}

func ExampleRouter_GetRecipes() {
	env := setupTestRouter(nil)
	defer env.server.Close()

	resp, err := http.Get(env.server.URL + "/api/recipes")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Body:", strings.TrimSpace(string(body)))

	// Output:
	// Status Code: 200
	// Body: []
}

func ExampleRouter_PostFavoritesAdd() {
	env := setupTestRouter(nil)
	defer env.server.Close()

	request, err := http.NewRequest(
		http.MethodPost,
		env.server.URL+"/api/favorites/add",
		strings.NewReader(`{"recipeId":"65f1c0ffee00000000000001"}`),
	)
	if err != nil {
		panic(err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Body:", strings.TrimSpace(string(body)))

	// Output:
	// Status Code: 401
	// Body: {"message":"Access denied. No token provided."}
}
