package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// PostPolicy selects what happens after a post-authorization decision.
type PostPolicy int

const (
	PolicyDisabled PostPolicy = 0
	PolicyNotify   PostPolicy = 1
	// PolicyPaymentReview is only meaningful for declines.
	PolicyPaymentReview PostPolicy = 2
)

// Method validation modes.
const (
	ModePre     = "pre"
	ModePost    = "post"
	ModePrePost = "prepost"
	ModeCron    = "cron"
)

// MerchantConfig is resolved once per event and passed by value.
type MerchantConfig struct {
	Enabled                 bool              `mapstructure:"enabled"`
	SiteID                  string            `mapstructure:"site_id"`
	OrderFulfillmentEnabled bool              `mapstructure:"order_fulfillment_enabled"`
	PostEnabled             bool              `mapstructure:"post_enabled"`
	PreAndPostEnabled       bool              `mapstructure:"pre_and_post_enabled"`
	MethodSettings          map[string]string `mapstructure:"method_settings"`
	AsyncPaymentMethods     []string          `mapstructure:"async_payment_methods"`
	AcceptedPaymentMethods  []string          `mapstructure:"accepted_payment_methods"`
	HoldingOrdersEnabled    bool              `mapstructure:"holding_orders_enabled"`
	ForceHoldingOrders      bool              `mapstructure:"force_holding_orders"`
	PendingOnHoldEnabled    bool              `mapstructure:"pending_on_hold_enabled"`
	DebugEnabled            bool              `mapstructure:"debug_enabled"`
	DeclinePost             PostPolicy        `mapstructure:"decline_post"`
	ApprovePost             PostPolicy        `mapstructure:"approve_post"`
	NotReviewPost           PostPolicy        `mapstructure:"not_review_post"`
	PostThanksMessage       string            `mapstructure:"post_thanks_message"`
}

// MappedPrePost returns the per-method validation mode. A "method:sub" entry
// wins over the plain method entry. Empty means no explicit setting.
func (c MerchantConfig) MappedPrePost(method, subMethod string) string {
	method = strings.ToLower(method)
	if subMethod != "" {
		if mode, ok := c.MethodSettings[method+":"+strings.ToLower(subMethod)]; ok {
			return mode
		}
	}
	return c.MethodSettings[method]
}

func (c MerchantConfig) IsAsyncMethod(method string) bool {
	return containsFold(c.AsyncPaymentMethods, method)
}

func (c MerchantConfig) IsAcceptedMethod(method string) bool {
	return containsFold(c.AcceptedPaymentMethods, method)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// MerchantSettings holds the default merchant configuration and per-store overrides.
type MerchantSettings struct {
	Default MerchantConfig            `mapstructure:"default"`
	Stores  map[string]MerchantConfig `mapstructure:"stores"`
}

// Resolve returns the configuration for a store, falling back to the default block.
func (s *MerchantSettings) Resolve(storeID string) MerchantConfig {
	if cfg, ok := s.Stores[strings.ToLower(storeID)]; ok {
		return cfg
	}
	return s.Default
}

func DefaultMerchantConfig() MerchantConfig {
	return MerchantConfig{
		Enabled:           true,
		PostEnabled:       true,
		DeclinePost:       PolicyNotify,
		ApprovePost:       PolicyNotify,
		NotReviewPost:     PolicyNotify,
		PostThanksMessage: "Thank you for your order. We will contact you shortly.",
	}
}

// LoadMerchantSettings reads merchant settings from a YAML file. An empty path
// yields the built-in defaults.
func LoadMerchantSettings(path string) (*MerchantSettings, error) {
	settings := &MerchantSettings{Default: DefaultMerchantConfig()}
	if path == "" {
		return settings, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading merchant config %s: %w", path, err)
	}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("parsing merchant config %s: %w", path, err)
	}
	return settings, nil
}
