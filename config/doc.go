// Package config loads nodeflow configuration from YAML files, .env files
// and environment variables.
//
// Viper reads the file and decodes the result; godotenv loads the .env
// file into the process environment. Every leaf key of the target struct
// is bound to an environment variable made of the service prefix and the
// key with dots replaced by underscores, so engine.max_depth is read from
// NODEFLOW_ENGINE_MAX_DEPTH.
//
// Without an explicit path the loader tries nodeflow.yml, nodeflow.yaml,
// config.yml and config.yaml in the working directory, then in .nodeflow/,
// then in the user config directory.
//
//	var cfg AppConfig
//	err := config.LoadConfig("nodeflow", &cfg, config.WithConfigFile(path))
package config
