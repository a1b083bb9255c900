// One-off: go run scripts/genhash.go [password] [cost]
package main

import (
	"fmt"
	"os"
	"strconv"

	"userauth/internal/auth"
)

func main() {
	password := "admin"
	if len(os.Args) > 1 {
		password = os.Args[1]
	}
	cost := auth.DefaultHashCost
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			panic(err)
		}
		cost = n
	}
	hasher, err := auth.NewPasswordHasher(cost)
	if err != nil {
		panic(err)
	}
	h, err := hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	fmt.Print(h)
}
