package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/stillcap/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Threshold, convey.ShouldEqual, 0.95)
				convey.So(cfg.CooldownMS, convey.ShouldEqual, 5000)
				convey.So(cfg.TargetCount, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("STILLCAP_ADDR", ":8080")
			_ = os.Setenv("STILLCAP_THRESHOLD", "0.9")
			_ = os.Setenv("STILLCAP_COOLDOWN_MS", "2500")
			_ = os.Setenv("STILLCAP_TARGET_COUNT", "12")
			_ = os.Setenv("STILLCAP_ACCELERATION_SOURCE", "linear")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Threshold, convey.ShouldEqual, 0.9)
				convey.So(cfg.CooldownMS, convey.ShouldEqual, 2500)
				convey.So(cfg.TargetCount, convey.ShouldEqual, 12)
				convey.So(cfg.AccelerationSource, convey.ShouldEqual, config.AccelerationLinear)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
threshold: 0.97
cooldown_ms: 1000
target_count: 20
mqtt_broker: "tcp://localhost:1883"
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STILLCAP_CONFIG", tmpFile)
			_ = os.Setenv("STILLCAP_TARGET_COUNT", "40")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Threshold, convey.ShouldEqual, 0.97)
				convey.So(cfg.CooldownMS, convey.ShouldEqual, 1000)
				convey.So(cfg.TargetCount, convey.ShouldEqual, 40)
				convey.So(cfg.MQTTBroker, convey.ShouldEqual, "tcp://localhost:1883")
				convey.So(cfg.MQTTTopic, convey.ShouldEqual, "stillcap/motion")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("STILLCAP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("STILLCAP_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(err, config.ErrConfigFile), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the threshold is out of range", func() {
			_ = os.Setenv("STILLCAP_THRESHOLD", "1.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "threshold")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("STILLCAP_TARGET_COUNT", "many")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"STILLCAP_CONFIG",
		"STILLCAP_ADDR",
		"STILLCAP_THRESHOLD",
		"STILLCAP_COOLDOWN_MS",
		"STILLCAP_TARGET_COUNT",
		"STILLCAP_ACCELERATION_SOURCE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "stillcap-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
