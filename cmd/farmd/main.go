package main

import (
	"log"

	"stakefarm/services/farmd"
)

func main() {
	if err := farmd.Main(); err != nil {
		log.Fatalf("farmd: %v", err)
	}
}
