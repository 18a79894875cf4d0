package engine

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// InitializeSchedules starts the periodic renderer self-check. It returns nil
// when SelfCheckInterval is zero.
func (serverHandler *ServerHandler) InitializeSchedules() (*cron.Cron, error) {
	interval := serverHandler.ServerConfig.SelfCheckInterval
	if interval <= 0 {
		Logger.Info("Renderer self-check disabled")
		return nil, nil
	}

	c := cron.New()
	var checkJob cron.Job
	checkJob = cron.FuncJob(func() { serverHandler.selfCheck() })
	checkJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(checkJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), checkJob); err != nil {
		return nil, fmt.Errorf("failed to schedule renderer self-check: %w", err)
	}
	Logger.Info("Adding renderer self-check scheduler", "interval_minutes", interval)
	c.Start()
	return c, nil
}
