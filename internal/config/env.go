package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of all configuration environment variables
const EnvPrefix = "AUTHINFO"

// springEnvAliases maps Spring Boot style variables for the OAuth2 client
// onto their config fields, so existing deployment manifests keep working.
var springEnvAliases = map[string]func(*Config) *string{
	"SECURITY_OAUTH2_CLIENT_ACCESS_TOKEN_URI": func(c *Config) *string { return &c.OAuth2.Client.AccessTokenURI },
	"SECURITY_OAUTH2_CLIENT_CLIENT_ID":        func(c *Config) *string { return &c.OAuth2.Client.ClientID },
	"SECURITY_OAUTH2_CLIENT_SCOPE":            func(c *Config) *string { return &c.OAuth2.Client.Scope },
}

// LoadEnv loads configuration from environment variables.
// AUTHINFO_* variables take precedence over the Spring style aliases.
func LoadEnv(cfg *Config) error {
	for name, field := range springEnvAliases {
		if val, ok := os.LookupEnv(name); ok {
			*field(cfg) = val
		}
	}
	return loadEnvStruct(reflect.ValueOf(cfg).Elem(), EnvPrefix)
}

// loadEnvStruct recursively loads environment variables into a struct
func loadEnvStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		envKey, ok := envKeyFor(fieldType, prefix)
		if !ok {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if val, ok := os.LookupEnv(envKey); ok {
				field.SetString(val)
			}

		case reflect.Int, reflect.Int64:
			if val := os.Getenv(envKey); val != "" {
				intVal, err := strconv.ParseInt(val, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid int value for %s: %v", envKey, err)
				}
				field.SetInt(intVal)
			}

		case reflect.Float64:
			if val := os.Getenv(envKey); val != "" {
				floatVal, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return fmt.Errorf("invalid float value for %s: %v", envKey, err)
				}
				field.SetFloat(floatVal)
			}

		case reflect.Bool:
			if val := os.Getenv(envKey); val != "" {
				boolVal, err := strconv.ParseBool(val)
				if err != nil {
					return fmt.Errorf("invalid bool value for %s: %v", envKey, err)
				}
				field.SetBool(boolVal)
			}

		case reflect.Slice:
			// comma separated string slices only
			if val := os.Getenv(envKey); val != "" && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(val, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for i, part := range parts {
					slice.Index(i).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}

		case reflect.Struct:
			if err := loadEnvStruct(field, envKey); err != nil {
				return err
			}

		case reflect.Ptr:
			if field.Type().Elem().Kind() != reflect.Struct {
				continue
			}
			if field.IsNil() {
				if !hasEnvVarsWithPrefix(envKey) {
					continue
				}
				field.Set(reflect.New(field.Type().Elem()))
			}
			if err := loadEnvStruct(field.Elem(), envKey); err != nil {
				return err
			}
		}
	}

	return nil
}

// envKeyFor derives PREFIX_FIELD from the field's yaml tag
func envKeyFor(field reflect.StructField, prefix string) (string, bool) {
	yamlTag := field.Tag.Get("yaml")
	if yamlTag == "" || yamlTag == "-" {
		return "", false
	}
	name := strings.Split(yamlTag, ",")[0]
	return fmt.Sprintf("%s_%s", prefix, strings.ToUpper(name)), true
}

// hasEnvVarsWithPrefix checks if any environment variables exist with the given prefix
func hasEnvVarsWithPrefix(prefix string) bool {
	prefix = prefix + "_"
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, prefix) {
			return true
		}
	}
	return false
}

// EnvExample generates example environment variables for the configuration
func EnvExample(cfg *Config) []string {
	var examples []string
	generateEnvExamples(reflect.TypeOf(cfg).Elem(), EnvPrefix, &examples)
	return examples
}

// SpringEnvAliases returns the supported Spring style variable names, sorted
func SpringEnvAliases() []string {
	names := make([]string, 0, len(springEnvAliases))
	for name := range springEnvAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func generateEnvExamples(t reflect.Type, prefix string, examples *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		envKey, ok := envKeyFor(field, prefix)
		if !ok {
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			*examples = append(*examples, fmt.Sprintf("%s=value", envKey))

		case reflect.Int, reflect.Int64:
			*examples = append(*examples, fmt.Sprintf("%s=123", envKey))

		case reflect.Float64:
			*examples = append(*examples, fmt.Sprintf("%s=0.5", envKey))

		case reflect.Bool:
			*examples = append(*examples, fmt.Sprintf("%s=true", envKey))

		case reflect.Slice:
			if field.Type.Elem().Kind() == reflect.String {
				*examples = append(*examples, fmt.Sprintf("%s=value1,value2", envKey))
			}

		case reflect.Struct:
			generateEnvExamples(field.Type, envKey, examples)

		case reflect.Ptr:
			if field.Type.Elem().Kind() == reflect.Struct {
				generateEnvExamples(field.Type.Elem(), envKey, examples)
			}
		}
	}
}
