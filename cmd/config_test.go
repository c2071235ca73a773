package cmd

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("loadConfig", func() {
	setenv := func(key, value string) {
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(os.Unsetenv, key)
	}

	It("reads the repository config.yml", func() {
		cfg, err := loadConfig("..")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(8 * time.Hour))
		Expect(cfg.RateLimit.LoginBurst).To(Equal(5))
		Expect(cfg.Calibration.SweepInterval).To(Equal(time.Hour))
	})

	It("lets prefixed environment variables override the file", func() {
		setenv("ENV_HTTP_SERVER_PORT", "9090")

		cfg, err := loadConfig("..")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(9090))
	})

	It("rejects a file that fails validation", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
http_server:
  port: 8080
database:
  source: "postgres://localhost/custody"
security:
  jwt_secret: "short"
  access_token_duration: 1h
  bcrypt_cost: 12
`), 0o600)).To(Succeed())

		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("jwt_secret")))
	})

	It("builds the config from the environment in production", func() {
		setenv("APP_ENV", "production")
		setenv("DATABASE_URL", "postgres://custody@db/custody")
		setenv("JWT_SECRET", "production-secret-with-enough-length")
		setenv("HTTP_PORT", "8181")

		cfg, err := loadConfig(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Env).To(Equal("production"))
		Expect(cfg.Server.Port).To(Equal(8181))
		Expect(cfg.Security.BCryptCost).To(Equal(12))
	})
})
