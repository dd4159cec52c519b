package main

import "github.com/stoik/replai/services/replai-service/internal/app"

func main() {
	app.Execute()
}
