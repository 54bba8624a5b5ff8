package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Configs представляет структуру конфигурации.
type Configs struct {
	Address     string `json:"address"`      // аналог переменной окружения BLOG_SERVER_ADDRESS или флага -a
	LogLevel    string `json:"log_level"`    // аналог переменной окружения BLOG_SERVER_LOG_LEVEL или флага -l
	DatabaseDSN string `json:"database_dsn"` // аналог переменной окружения BLOG_SERVER_DATABASE_URL или флага -d
	SecretKey   string `json:"secret_key"`   // аналог переменной окружения BLOG_SERVER_SECRET_KEY или флага -secret-key
	ExpireToken int    `json:"expire_token"` // аналог переменной окружения BLOG_SERVER_EXPIRE_TOKEN или флага -expire-token
	HashCost    int    `json:"hash_cost"`    // аналог переменной окружения BLOG_SERVER_HASH_COST или флага -hash-cost
}

// ParseConfigFile - функция для чтения параметров конфигурации из файла конфигурации.
func ParseConfigFile(configFileName string) (Configs, error) {
	var configs Configs
	f, err := os.Open(configFileName)
	if err != nil {
		return Configs{}, fmt.Errorf("open configuration file error: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	err = dec.Decode(&configs)
	if err != nil {
		return Configs{}, fmt.Errorf("parse configuration file error: %w", err)
	}

	return configs, nil
}
