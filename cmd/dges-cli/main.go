package main

import (
	"context"

	"dgesscraper/cmd/dges-cli/commands"
	"dgesscraper/lib/serviceutil"
	"dgesscraper/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "dges-cli")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(context.Background())

	commands.ExecuteContext(ctx)
}
