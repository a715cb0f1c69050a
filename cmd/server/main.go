package main

import "taskboard/internal/app"

// @title           Task Board API
// @version         1.0
// @description     Collaborative task board with real-time updates.
// @BasePath        /
func main() {
	app.Run()
}
