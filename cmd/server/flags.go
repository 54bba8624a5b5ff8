package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/abezemskiy/blogauth/internal/common/identity/tools/hasher"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/token"
	"github.com/abezemskiy/blogauth/internal/server/config"
	"github.com/abezemskiy/blogauth/internal/server/handlers"
	"golang.org/x/crypto/bcrypt"
)

// defaultExpireToken - время действия токена по умолчанию в часах, совпадает со временем жизни cookie.
const defaultExpireToken = 7 * 24

var (
	netAddr     string // адрес запуска сервиса
	databaseDsn string // адрес базы данных, если не задан - пользователи хранятся в памяти
	logLevel    string // уровень логирования
	configFile  string // путь к файлу конфигурации
	secretKey   string // секретный ключ для подписи JWT
	expireToken int    // время действия JWT в часах
	hashCost    int    // стоимость хэширования паролей bcrypt
)

// parseVariables - функция для установки конфигурационных параметров приложения.
// Конфигурирование приложения с приоритетом в порядке убывания: значения флагов, значения из файла, значения переменных окружения.
func parseVariables() error {
	parseFlags()
	if err := parseConfigFile(); err != nil {
		return fmt.Errorf("failed to parse config file, %w", err)
	}
	parseEnvironment()
	setDefaults()

	// Проверяю корректность установки глобальных переменных
	err := checkVariables()
	if err != nil {
		return fmt.Errorf("failed to set global variable, %w", err)
	}

	// Устанавливаю полученные значения глобальных переменных
	token.SetSecretKey(secretKey)
	token.SetExpireHour(expireToken)
	hasher.SetCost(hashCost)

	// фиктивный хэш строится с установленной стоимостью до приема запросов
	if err := handlers.PrepareDummyHash(); err != nil {
		return err
	}
	return nil
}

// parseFlags - функция для определения параметров конфигурации из флагов.
func parseFlags() {
	flag.StringVar(&netAddr, "a", "", "address and port to run server")
	flag.StringVar(&databaseDsn, "d", "", "database connection address")
	flag.StringVar(&logLevel, "l", "", "log level")
	flag.StringVar(&configFile, "c", "", "name of configuration file")
	flag.StringVar(&secretKey, "secret-key", "", "secret key for signing JWT")
	flag.IntVar(&expireToken, "expire-token", 0, "JWT expiration in hours")
	flag.IntVar(&hashCost, "hash-cost", 0, "bcrypt cost of password hashing")

	flag.Parse()
}

// parseConfigFile - функция для переопределения параметров конфигурации из файла конфигурации.
func parseConfigFile() error {
	// если не указан файл конфигурации, то оставляю параметры запуска без изменения
	if configFile == "" {
		return nil
	}
	configs, err := config.ParseConfigFile(configFile)
	if err != nil {
		return err
	}

	// обновляю параметры запуска если они не определены флагами
	if netAddr == "" {
		netAddr = configs.Address
	}
	if logLevel == "" {
		logLevel = configs.LogLevel
	}
	if databaseDsn == "" {
		databaseDsn = configs.DatabaseDSN
	}
	if secretKey == "" {
		secretKey = configs.SecretKey
	}
	if expireToken == 0 {
		expireToken = configs.ExpireToken
	}
	if hashCost == 0 {
		hashCost = configs.HashCost
	}
	return nil
}

// parseEnvironment - функция для переопределения конфигурации из переменных окружения.
// Переопределяет конфигурацию, если значения не установлены флагами или файлом конфигурации.
func parseEnvironment() {
	if netAddr == "" {
		netAddr = os.Getenv("BLOG_SERVER_ADDRESS")
	}
	if databaseDsn == "" {
		databaseDsn = os.Getenv("BLOG_SERVER_DATABASE_URL")
	}
	if logLevel == "" {
		logLevel = os.Getenv("BLOG_SERVER_LOG_LEVEL")
	}
	if secretKey == "" {
		secretKey = os.Getenv("BLOG_SERVER_SECRET_KEY")
	}
	if expireToken == 0 {
		expireToken = envInt("BLOG_SERVER_EXPIRE_TOKEN")
	}
	if hashCost == 0 {
		hashCost = envInt("BLOG_SERVER_HASH_COST")
	}
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// setDefaults - устанавливает значения по умолчанию для необязательных параметров.
func setDefaults() {
	if expireToken == 0 {
		expireToken = defaultExpireToken
	}
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
}

// checkVariables - функция для проверки корректности установки глобальных переменных.
func checkVariables() error {
	if netAddr == "" {
		return fmt.Errorf("address and port to run server must be set")
	}
	if logLevel == "" {
		return fmt.Errorf("log level must be set")
	}
	if secretKey == "" {
		return fmt.Errorf("secret key must be set")
	}
	if expireToken < 0 {
		return fmt.Errorf("expire token must be positive")
	}
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		return fmt.Errorf("hash cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}
