package main

import "github.com/forPelevin/realign/internal/cli"

func main() { cli.Main() }
