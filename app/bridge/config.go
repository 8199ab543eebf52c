package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mavryk-network/mvsign/common"
)

const (
	transportLoopback = "loopback"
	transportUSB      = "usb"

	// EnvMnemonic overrides the loopback mnemonic so the secret can
	// stay out of the config file.
	EnvMnemonic = "MVSIGN_MNEMONIC"
)

// Config drives one bridge process. Load fills in defaults for every
// key a file leaves out.
type Config struct {
	Listen    string `toml:"listen"`
	Transport string `toml:"transport"`

	USB      USBConfig      `toml:"usb"`
	Loopback LoopbackConfig `toml:"loopback"`

	SettingsPath string `toml:"settings_path"`
	AuditPath    string `toml:"audit_path"`
}

// USBConfig selects the physical device to claim.
type USBConfig struct {
	VendorID  uint16 `toml:"vendor_id"`
	ProductID uint16 `toml:"product_id"`
}

// LoopbackConfig seeds the in-process device used when no hardware is
// attached. AutoApprove makes the built-in renderer accept every
// terminal prompt instead of declining it.
type LoopbackConfig struct {
	Mnemonic    string `toml:"mnemonic"`
	Passphrase  string `toml:"passphrase"`
	AutoApprove bool   `toml:"auto_approve"`
}

func defaultConfig() Config {
	return Config{
		Listen:       "127.0.0.1:8432",
		Transport:    transportLoopback,
		USB:          USBConfig{VendorID: common.VID, ProductID: common.PID},
		SettingsPath: "mvsign-settings.toml",
		AuditPath:    "mvsign-audit.db",
	}
}

// loadConfig reads path on top of the defaults. An empty path means
// defaults only.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if extra := md.Undecoded(); len(extra) > 0 {
			return Config{}, fmt.Errorf("config: unknown key %q", extra[0].String())
		}
	}

	if v := os.Getenv(EnvMnemonic); v != "" {
		cfg.Loopback.Mnemonic = v
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is empty")
	}
	switch c.Transport {
	case transportLoopback:
		if c.Loopback.Mnemonic == "" {
			return fmt.Errorf("config: loopback transport needs a mnemonic (file key loopback.mnemonic or %s)", EnvMnemonic)
		}
	case transportUSB:
		if c.USB.VendorID == 0 {
			return fmt.Errorf("config: usb transport needs a vendor_id")
		}
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	return nil
}
