package main

import (
	"fmt"

	"github.com/temirov/repodigest/internal/cli"
	"github.com/temirov/repodigest/internal/utils"
)

const (
	loggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
	applicationExecutionFailedMessage       = "repodigest failed"
)

// main is the entry point for the repodigest command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(false)
	if loggerInitializationError != nil {
		panic(fmt.Errorf(loggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer func() { _ = loggerInstance.Sync() }()
	if applicationExecutionError := cli.Execute(); applicationExecutionError != nil {
		loggerInstance.Fatal(applicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
