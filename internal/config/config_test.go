package config_test

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/tallybot/tally/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.TriggerWord, convey.ShouldEqual, "tally")
			convey.So(cfg.ListenChannel, convey.ShouldEqual, "checkins")
			convey.So(cfg.ReportChannel, convey.ShouldEqual, "general")
			convey.So(cfg.Store, convey.ShouldEqual, config.StorePostgres)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.RetryDelay, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.DayLength, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.MaxJitter, convey.ShouldEqual, 15*time.Minute)
		})
	})
}
