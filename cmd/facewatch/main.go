package main

import (
	"facewatch-go/internal/cmd"
)

func main() {
	cmd.Execute()
}
