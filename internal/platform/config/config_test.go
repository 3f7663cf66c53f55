package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "zainah-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Environment != "local" {
		t.Errorf("expected default environment local, got %s", cfg.Environment)
	}
	if cfg.Firestore.OrdersCollection != defaultOrdersCollection {
		t.Errorf("expected default orders collection, got %s", cfg.Firestore.OrdersCollection)
	}
	if cfg.Thawani.BaseURL != defaultThawaniBaseURL {
		t.Errorf("unexpected gateway base url: %s", cfg.Thawani.BaseURL)
	}
	if cfg.Thawani.SessionScanLimit != defaultSessionScanLimit {
		t.Errorf("unexpected session scan limit: %d", cfg.Thawani.SessionScanLimit)
	}
	if cfg.Checkout.DepositOMR != defaultDepositOMR {
		t.Errorf("unexpected deposit amount: %v", cfg.Checkout.DepositOMR)
	}
	if cfg.Checkout.GulfShippingOMR != defaultGulfFeeOMR {
		t.Errorf("unexpected gulf shipping fee: %v", cfg.Checkout.GulfShippingOMR)
	}
	if len(cfg.Checkout.PairDiscountCategories) != 2 {
		t.Errorf("expected default pair categories, got %v", cfg.Checkout.PairDiscountCategories)
	}
	if cfg.Pending.TTL != defaultPendingTTL {
		t.Errorf("unexpected pending ttl: %s", cfg.Pending.TTL)
	}
	if cfg.Pending.SweepInterval != defaultPendingSweep {
		t.Errorf("unexpected sweep interval: %s", cfg.Pending.SweepInterval)
	}
	if cfg.Events.Enabled {
		t.Error("expected events disabled by default")
	}
	if cfg.Events.ProjectID != "zainah-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_READ_TIMEOUT":            "20s",
		"API_SERVER_IDLE_TIMEOUT":            "2m",
		"API_ENVIRONMENT":                    "PROD",
		"API_FIRESTORE_PROJECT_ID":           "zainah-prod",
		"API_FIRESTORE_ORDERS_COLLECTION":    "orders_v2",
		"API_THAWANI_BASE_URL":               "https://checkout.thawani.om/api/v1",
		"API_THAWANI_CHECKOUT_BASE_URL":      "https://checkout.thawani.om/pay",
		"API_THAWANI_API_KEY":                "secret://thawani/api-key",
		"API_THAWANI_PUBLISHABLE_KEY":        "secret://thawani/publishable",
		"API_THAWANI_SUCCESS_URL":            "https://shop.example.com/payment-success",
		"API_THAWANI_CANCEL_URL":             "https://shop.example.com/payment-failed",
		"API_THAWANI_SESSION_SCAN_LIMIT":     "50",
		"API_CHECKOUT_DEPOSIT_OMR":           "12.5",
		"API_CHECKOUT_GULF_SHIPPING_OMR":     "6",
		"API_CHECKOUT_PAIR_CATEGORIES":       "شيلات, عبايات",
		"API_PENDING_TTL":                    "12h",
		"API_PENDING_SWEEP_INTERVAL":         "15m",
		"API_PENDING_SWEEP_BATCH":            "500",
		"API_EVENTS_ENABLED":                 "true",
		"API_EVENTS_PROJECT_ID":              "zainah-events",
		"API_EVENTS_ORDER_PAID_TOPIC":        "order-paid",
	}

	secrets := map[string]string{
		"secret://thawani/api-key":     "thawani-key",
		"secret://thawani/publishable": "thawani-pub",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Environment != "prod" {
		t.Errorf("expected lowercased environment, got %s", cfg.Environment)
	}
	if cfg.Firestore.OrdersCollection != "orders_v2" {
		t.Errorf("unexpected orders collection %s", cfg.Firestore.OrdersCollection)
	}
	if cfg.Thawani.APIKey != "thawani-key" {
		t.Errorf("expected resolved gateway key, got %s", cfg.Thawani.APIKey)
	}
	if cfg.Thawani.PublishableKey != "thawani-pub" {
		t.Errorf("expected resolved publishable key, got %s", cfg.Thawani.PublishableKey)
	}
	if cfg.Thawani.SessionScanLimit != 50 {
		t.Errorf("unexpected scan limit %d", cfg.Thawani.SessionScanLimit)
	}
	if cfg.Checkout.DepositOMR != 12.5 {
		t.Errorf("unexpected deposit %v", cfg.Checkout.DepositOMR)
	}
	if cfg.Checkout.GulfShippingOMR != 6 {
		t.Errorf("unexpected gulf fee %v", cfg.Checkout.GulfShippingOMR)
	}
	if len(cfg.Checkout.PairDiscountCategories) != 2 || cfg.Checkout.PairDiscountCategories[0] != "شيلات" {
		t.Errorf("unexpected pair categories %v", cfg.Checkout.PairDiscountCategories)
	}
	if cfg.Pending.TTL != 12*time.Hour {
		t.Errorf("unexpected pending ttl %s", cfg.Pending.TTL)
	}
	if cfg.Pending.SweepInterval != 15*time.Minute {
		t.Errorf("unexpected sweep interval %s", cfg.Pending.SweepInterval)
	}
	if cfg.Pending.SweepBatchSize != 500 {
		t.Errorf("unexpected sweep batch %d", cfg.Pending.SweepBatchSize)
	}
	if !cfg.Events.Enabled || cfg.Events.ProjectID != "zainah-events" || cfg.Events.OrderPaidTopic != "order-paid" {
		t.Errorf("unexpected events config %+v", cfg.Events)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=zainah-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "zainah-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadEventsRequireTopicWhenEnabled(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "zainah-dev",
		"API_EVENTS_ENABLED":       "true",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error for missing topic, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Events.OrderPaidTopic" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Events.OrderPaidTopic in %v", validation.Fields())
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "zainah-dev",
		"API_THAWANI_API_KEY":      "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIRESTORE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIRESTORE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS":  "secret://thawani/api-key=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIRESTORE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_SECRET_VERSION_PINS"]; got != "secret://thawani/api-key=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "zainah-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Thawani.APIKey"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Thawani.APIKey")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "zainah-dev",
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Thawani.APIKey" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Thawani.APIKey"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "zainah-dev",
		"API_THAWANI_API_KEY":      "sm://thawani/api-key",
	}

	secrets := map[string]string{
		"secret://thawani/api-key": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Thawani.APIKey != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Thawani.APIKey)
	}
}
