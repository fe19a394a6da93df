package main

import "github.com/aimat-lab/AutoSlurm/cmd"

func main() {
	cmd.Execute()
}
