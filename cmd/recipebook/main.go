// Command recipebook runs the recipe sharing HTTP API.
package main

import (
	"log"

	"github.com/patric-chuzhbe/recipebook/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatal(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Println(err)
		return
	}
}
