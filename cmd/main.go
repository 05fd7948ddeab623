package main

import (
	"github.com/system-monitor-pro/cmd/agent"
)

func main() {
	agent.Execute()
}
