package domain

// Settings is the node's runtime configuration. It is read-mostly: owned by
// the settings store, handed out as value copies (GetCopy) so a reader never
// races a concurrent JSON patch + flash save.
type Settings struct {
	// Network
	APN     string `json:"apn" yaml:"apn"`
	ApnUser string `json:"apnUser" yaml:"apn_user"`
	ApnPass string `json:"apnPass" yaml:"apn_pass"`
	SimPin  string `json:"simPin" yaml:"sim_pin"`

	// MQTT
	MqttHost     string `json:"mqttHost" yaml:"mqtt_host"`
	MqttPort     int    `json:"mqttPort" yaml:"mqtt_port"`
	MqttUser     string `json:"mqttUser" yaml:"mqtt_user"`
	MqttPass     string `json:"mqttPass" yaml:"mqtt_pass"`
	MqttClientID string `json:"mqttClientId" yaml:"mqtt_client_id"`

	// Device
	DeviceName string `json:"deviceName" yaml:"device_name"`

	// Sensor / schedule
	SensorAddr      int    `json:"sensorAddr" yaml:"sensor_addr"`
	SensorBaud      int    `json:"sensorBaud" yaml:"sensor_baud"`
	SensorWarmupMs  uint32 `json:"sensorWarmupMs" yaml:"sensor_warmup_ms"`
	SensorType      int    `json:"sensorType" yaml:"sensor_type"`
	SamplePeriodMs  uint32 `json:"samplePeriodMs" yaml:"sample_period_ms"`
	AggPeriodS      uint32 `json:"aggPeriodS" yaml:"agg_period_s"`

	// Power
	LowBattMinV        float32 `json:"lowBattMinV" yaml:"low_batt_min_v"`
	MaxChargingCurrent int     `json:"maxChargingCurrent" yaml:"max_charging_current"`
	MaxChargingVoltage float32 `json:"maxChargingVoltage" yaml:"max_charging_voltage"`
	EmergencyDelayS    uint32  `json:"emergencyDelayS" yaml:"emergency_delay_s"`
	DefaultSleepS      uint32  `json:"defaultSleepS" yaml:"default_sleep_s"`
	StatusIntervalS    uint32  `json:"statusIntervalS" yaml:"status_interval_s"`
	AwareTimeoutS      uint32  `json:"awareTimeoutS" yaml:"aware_timeout_s"`
	EmergencySleepS    uint32  `json:"emergencySleepS" yaml:"emergency_sleep_s"`
	MaxForcedSleepS    uint32  `json:"maxForcedSleepS" yaml:"max_forced_sleep_s"`
	MaxUnackedPackets  uint32  `json:"maxUnackedPackets" yaml:"max_unacked_packets"`
}

// Defaults mirrors the factory-reset values of the original settings
// manager: a node that has never been configured must still boot sane.
func Defaults() Settings {
	return Settings{
		SensorAddr:         1,
		SensorBaud:         9600,
		SensorWarmupMs:     4000,
		SensorType:         1,
		SamplePeriodMs:     1000,
		AggPeriodS:         15,
		SimPin:             "0000",
		APN:                "telenor.smart",
		MqttHost:           "mqtt.vamotech.no",
		MqttPort:           1883,
		MqttUser:           "",
		MqttPass:           "guest",
		MqttClientID:       "HastigClient",
		DeviceName:         "Hastig",
		AwareTimeoutS:      600,
		DefaultSleepS:      3600,
		StatusIntervalS:    120,
		LowBattMinV:        2.8,
		MaxChargingCurrent: 1000,
		MaxChargingVoltage: 3.64,
		EmergencyDelayS:    60,
		EmergencySleepS:    43200,
		MaxForcedSleepS:    43200,
		MaxUnackedPackets:  10,
	}
}

// ConfigSection names the groups the config snapshot is chunked into when it
// doesn't fit a single MQTT publish.
type ConfigSection int

const (
	SectionNetwork ConfigSection = iota
	SectionMqtt
	SectionDevice
	SectionSchedule
	SectionPower
)

func (s ConfigSection) String() string {
	switch s {
	case SectionNetwork:
		return "network"
	case SectionMqtt:
		return "mqtt"
	case SectionDevice:
		return "device"
	case SectionSchedule:
		return "schedule"
	case SectionPower:
		return "power"
	default:
		return "unknown"
	}
}

const maskedValue = "***"

// Masked returns a copy with secret fields replaced so it is safe to publish.
func (s Settings) Masked() Settings {
	m := s
	if m.SimPin != "" {
		m.SimPin = maskedValue
	}
	if m.ApnPass != "" {
		m.ApnPass = maskedValue
	}
	if m.ApnUser != "" {
		m.ApnUser = maskedValue
	}
	if m.MqttPass != "" {
		m.MqttPass = maskedValue
	}
	return m
}

// ClampSamplePeriod enforces the minimum sample period silently, matching
// the sampling activity's own clamp on the effective period.
func ClampSamplePeriod(ms uint32) uint32 {
	const minSamplePeriodMs = 200
	if ms < minSamplePeriodMs {
		return minSamplePeriodMs
	}
	return ms
}
