package main

import (
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

// App binds the shared collector state to the gin handlers and middleware.
type App struct {
	*models.App
}
