package main

import "github.com/vasiliy-maslov/bookstore/internal/cli"

func main() {
	cli.Execute()
}
