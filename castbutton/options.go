package castbutton

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go2tv.app/castbutton/castsdk"
)

const (
	// DefaultPollInterval between two SDK availability checks.
	DefaultPollInterval = time.Second
	// DefaultMaxPollAttempts before availability probing gives up.
	DefaultMaxPollAttempts = 5
)

// Options are the plugin options.
type Options struct {
	AppID               string                      `mapstructure:"appId"`
	Metadata            map[string]any              `mapstructure:"metadata"`
	PollInterval        time.Duration               `mapstructure:"pollInterval"`
	MaxPollAttempts     int                         `mapstructure:"maxPollAttempts"`
	AutoJoinPolicy      castsdk.AutoJoinPolicy      `mapstructure:"autoJoinPolicy"`
	DefaultActionPolicy castsdk.DefaultActionPolicy `mapstructure:"defaultActionPolicy"`
}

// DefaultOptions target the platform's generic receiver.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.AppID == "" {
		o.AppID = castsdk.DefaultMediaReceiverAppID
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxPollAttempts <= 0 {
		o.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if o.AutoJoinPolicy == "" {
		o.AutoJoinPolicy = castsdk.AutoJoinTabAndOriginScoped
	}
	if o.DefaultActionPolicy == "" {
		o.DefaultActionPolicy = castsdk.DefaultActionCastThisTab
	}
	return o
}

// DecodeOptions decodes loosely typed plugin options. Durations accept Go
// duration strings ("1500ms") or plain numbers of milliseconds.
func DecodeOptions(raw map[string]any) (Options, error) {
	var o Options

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisecondsHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &o,
	})
	if err != nil {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}

	if err := dec.Decode(raw); err != nil {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}

	return o.withDefaults(), nil
}

func millisecondsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	durationType := reflect.TypeOf(time.Duration(0))
	if to != durationType || from == durationType {
		return data, nil
	}

	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Millisecond, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Millisecond, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Millisecond)), nil
	}
	return data, nil
}
