package main

import (
	"fmt"

	"guardbackend/core"
)

// Generates a new admin API key for the status API (ADMIN_API_KEY)
func main() {
	key, err := core.NewSecretKey("gbk")
	if err != nil {
		panic(err)
	}
	fmt.Println(key)
}
