package services

import "github.com/halcyonlabs/apkforge/internal/domain/entities"

// Declarative overlay data. The merge algorithms in overlay.go are
// independent of these tables; callers may substitute sets loaded from
// configuration (see external-adapters/yaml).

// basePermissions is injected in every mode
var basePermissions = []string{
	"android.permission.INTERNET",
	"android.permission.ACCESS_NETWORK_STATE",
	"android.permission.ACCESS_WIFI_STATE",
	"android.permission.CHANGE_WIFI_STATE",
	"android.permission.READ_EXTERNAL_STORAGE",
	"android.permission.WRITE_EXTERNAL_STORAGE",
	"android.permission.WAKE_LOCK",
	"android.permission.VIBRATE",
	"android.permission.RECEIVE_BOOT_COMPLETED",
	"android.permission.FOREGROUND_SERVICE",
	"android.permission.POST_NOTIFICATIONS",
	"android.permission.REQUEST_IGNORE_BATTERY_OPTIMIZATIONS",
}

// extendedPermissions is added for sandbox and combined modes
var extendedPermissions = []string{
	"com.android.vending.BILLING",
	"com.android.vending.CHECK_LICENSE",
	"android.permission.QUERY_ALL_PACKAGES",
	"android.permission.MANAGE_EXTERNAL_STORAGE",
	"android.permission.SYSTEM_ALERT_WINDOW",
	"android.permission.REQUEST_INSTALL_PACKAGES",
	"android.permission.REQUEST_DELETE_PACKAGES",
	"android.permission.ACCESS_FINE_LOCATION",
	"android.permission.ACCESS_COARSE_LOCATION",
	"android.permission.CAMERA",
	"android.permission.RECORD_AUDIO",
	"android.permission.READ_PHONE_STATE",
	"android.permission.GET_ACCOUNTS",
	"android.permission.USE_BIOMETRIC",
	"android.permission.USE_FINGERPRINT",
	"android.permission.NFC",
	"android.permission.BLUETOOTH",
	"android.permission.BLUETOOTH_ADMIN",
	"android.permission.BLUETOOTH_CONNECT",
}

var baseBooleans = []entities.BoolResource{
	{Name: "apkforge_debug_enabled", Value: true},
	{Name: "apkforge_cleartext_allowed", Value: true},
	{Name: "apkforge_strict_mode", Value: false},
	{Name: "apkforge_crash_reporting", Value: false},
}

var extendedBooleans = []entities.BoolResource{
	{Name: "apkforge_billing_sandbox", Value: true},
	{Name: "apkforge_license_check_bypass", Value: true},
	{Name: "apkforge_root_detection_bypass", Value: true},
	{Name: "apkforge_emulator_check_bypass", Value: true},
	{Name: "apkforge_ssl_pinning_bypass", Value: true},
}

var baseStrings = []entities.StringResource{
	{Name: "apkforge_env", Value: "development"},
	{Name: "apkforge_api_host", Value: "10.0.2.2"},
	{Name: "apkforge_log_level", Value: "debug"},
}

var extendedStrings = []entities.StringResource{
	{Name: "apkforge_billing_endpoint", Value: "http://10.0.2.2:8090/billing"},
	{Name: "apkforge_license_response", Value: "LICENSED"},
}

var baseIntegers = []entities.IntegerResource{
	{Name: "apkforge_network_timeout_ms", Value: 30000},
	{Name: "apkforge_retry_limit", Value: 3},
}

var extendedIntegers = []entities.IntegerResource{
	{Name: "apkforge_billing_response_code", Value: 0},
	{Name: "apkforge_trial_days", Value: 3650},
}

var extendedArrays = []entities.ArrayResource{
	{Name: "apkforge_test_accounts", Items: []string{
		"tester01@example.com",
		"tester02@example.com",
	}},
	{Name: "apkforge_bypass_hosts", Items: []string{
		"localhost",
		"127.0.0.1",
		"10.0.2.2",
	}},
}

var extendedProviders = []entities.Component{
	{
		Name:     "androidx.core.content.FileProvider",
		Exported: false,
		Attrs: []entities.Attr{
			{Key: "android:authorities", Value: "${applicationId}.apkforge.fileprovider"},
			{Key: "android:grantUriPermissions", Value: "true"},
		},
	},
}

// OverlayForMode returns the overlay set for the given mode. Sandbox
// and combined modes receive the extended superset atop the debug base.
func OverlayForMode(mode entities.Mode) entities.OverlaySet {
	set := entities.OverlaySet{
		Permissions: append([]string(nil), basePermissions...),
		Booleans:    append([]entities.BoolResource(nil), baseBooleans...),
		Strings:     append([]entities.StringResource(nil), baseStrings...),
		Integers:    append([]entities.IntegerResource(nil), baseIntegers...),
	}
	if !mode.Extended() {
		return set
	}
	return set.Merge(entities.OverlaySet{
		Permissions: extendedPermissions,
		Booleans:    extendedBooleans,
		Strings:     extendedStrings,
		Integers:    extendedIntegers,
		Arrays:      extendedArrays,
		Providers:   extendedProviders,
	})
}

// applicationAttributes is the fixed attribute set written onto the
// application element unconditionally; the overlay always wins over
// whatever the original manifest declared.
func applicationAttributes(mode entities.Mode) []entities.Attr {
	testOnly := "false"
	if mode.Extended() {
		testOnly = "true"
	}
	return []entities.Attr{
		{Key: "android:name", Value: ApplicationClass(mode)},
		{Key: "android:debuggable", Value: "true"},
		{Key: "android:allowBackup", Value: "true"},
		{Key: "android:testOnly", Value: testOnly},
		{Key: "android:extractNativeLibs", Value: "true"},
		{Key: "android:usesCleartextTraffic", Value: "true"},
		{Key: "android:networkSecurityConfig", Value: "@xml/network_security_config"},
		{Key: "android:requestLegacyExternalStorage", Value: "true"},
		{Key: "android:largeHeap", Value: "true"},
		{Key: "android:hardwareAccelerated", Value: "true"},
	}
}

// ApplicationClass returns the mode-dependent application class name
func ApplicationClass(mode entities.Mode) string {
	if mode.Extended() {
		return ".SandboxApplication"
	}
	return ".DebugApplication"
}
