package handlers

import (
	"errors"
	"net/http"
)

func GetRecipe(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "" {
		panic("empty path") // want "avoid panic in HTTP handlers, write an error response instead"
	}
	w.WriteHeader(http.StatusOK)
}

type server struct{}

func (s *server) DeleteRecipe(response http.ResponseWriter, request *http.Request) {
	panic(errors.New("not implemented")) // want "avoid panic in HTTP handlers, write an error response instead"
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			panic("nil request") // want "avoid panic in HTTP handlers, write an error response instead"
		}
		next.ServeHTTP(w, r)
	})
}

func mustParse(s string) int {
	if s == "" {
		panic("empty")
	}
	return len(s)
}

func ListRecipes(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panic(recovered)
		}
	}()
	_ = mustParse(r.URL.Path)
	w.WriteHeader(http.StatusOK)
}
