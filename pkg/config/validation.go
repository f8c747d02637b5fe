package config

import (
	"fmt"
	"reflect"
	"strings"
)

// String renders the configuration as indented key: value lines, using
// mapstructure names so the output matches the file keys.
func (c *Config) String() string {
	var sb strings.Builder
	writeStruct(&sb, reflect.ValueOf(c).Elem(), "", nil)
	return sb.String()
}

// Redacted renders like String with every value that came from the
// secrets file masked. Pass the map returned by
// ConfigProvider.LoadWithSecrets; with no secrets the output equals
// String.
func (c *Config) Redacted(secrets map[string]interface{}) string {
	if len(secrets) == 0 {
		return c.String()
	}
	var sb strings.Builder
	writeStruct(&sb, reflect.ValueOf(c).Elem(), "", secrets)
	return sb.String()
}

// writeStruct walks the config struct. secrets holds the nested keys of
// the current level that must be masked, nil when nothing at this level
// is secret.
func writeStruct(sb *strings.Builder, v reflect.Value, indent string, secrets map[string]interface{}) {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanInterface() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("mapstructure"); tag != "" && tag != "-" {
			name = tag
		}

		switch value.Kind() {
		case reflect.Struct:
			fmt.Fprintf(sb, "%s%s:\n", indent, name)
			writeStruct(sb, value, indent+"  ", nestedSecrets(secrets, name))
		case reflect.Slice:
			if value.Len() == 0 {
				fmt.Fprintf(sb, "%s%s: []\n", indent, name)
				continue
			}
			fmt.Fprintf(sb, "%s%s:\n", indent, name)
			for j := 0; j < value.Len(); j++ {
				fmt.Fprintf(sb, "%s  - %v\n", indent, value.Index(j).Interface())
			}
		case reflect.Map:
			if value.Len() == 0 {
				fmt.Fprintf(sb, "%s%s: {}\n", indent, name)
				continue
			}
			fmt.Fprintf(sb, "%s%s:\n", indent, name)
			for _, key := range value.MapKeys() {
				fmt.Fprintf(sb, "%s  %v: %v\n", indent, key.Interface(), value.MapIndex(key).Interface())
			}
		default:
			display := value.Interface()
			if secretKeySet(secrets, name) {
				display = "***"
			}
			fmt.Fprintf(sb, "%s%s: %v\n", indent, name, display)
		}
	}
}

func nestedSecrets(secrets map[string]interface{}, key string) map[string]interface{} {
	if secrets == nil {
		return nil
	}
	nested, _ := secrets[strings.ToLower(key)].(map[string]interface{})
	return nested
}

// secretKeySet reports whether the secrets file carried a non-zero value
// for the key, marking the field as one to mask.
func secretKeySet(secrets map[string]interface{}, key string) bool {
	if secrets == nil {
		return false
	}
	value, ok := secrets[strings.ToLower(key)]
	if !ok || value == nil {
		return false
	}
	return !reflect.ValueOf(value).IsZero()
}
