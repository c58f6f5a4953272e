package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certforge/internal/config"
	"certforge/internal/database"
)

// 运维工具：创建经销商并挂一套演示数据（培训项目 + 证书类型），
// 方便新环境做端到端验证。
func main() {
	var (
		dealerName = flag.String("dealer", "", "经销商名称（必填）")
		dbHost     = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort     = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName     = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser     = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass     = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode    = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	name := strings.TrimSpace(*dealerName)
	if name == "" {
		log.Fatal("missing required flag: --dealer")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	var existing database.Dealer
	switch err := db.Where("name = ?", name).First(&existing).Error; {
	case err == nil:
		log.Fatalf("dealer %q already exists", name)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Fatalf("query dealer: %v", err)
	}

	dealer := database.Dealer{Name: name}
	if err := db.Create(&dealer).Error; err != nil {
		log.Fatalf("create dealer: %v", err)
	}

	training := database.Training{
		Names: mustNames(map[string]string{
			"en": "Basic First Aid",
			"tr": "Temel İlk Yardım",
		}),
		DefaultLanguage: "en",
		DurationHours:   16,
		DealerID:        dealer.ID,
	}
	if err := db.Create(&training).Error; err != nil {
		log.Fatalf("create demo training: %v", err)
	}

	certType := database.CertificateType{
		Names: mustNames(map[string]string{
			"en": "Certificate of Completion",
			"tr": "Katılım Sertifikası",
		}),
	}
	if err := db.Create(&certType).Error; err != nil {
		log.Fatalf("create demo certificate type: %v", err)
	}

	fmt.Printf("已创建经销商与演示数据：\n")
	fmt.Printf("经销商 ID: %d (%s)\n", dealer.ID, dealer.Name)
	fmt.Printf("培训项目 ID: %d\n", training.ID)
	fmt.Printf("证书类型 ID: %d\n", certType.ID)
}

func mustNames(names map[string]string) datatypes.JSON {
	data, err := json.Marshal(names)
	if err != nil {
		log.Fatalf("marshal names: %v", err)
	}
	return datatypes.JSON(data)
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("DB_NAME")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("DB_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("DB_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
