package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the first .env file found in the working directory or up
// to two parents. It returns the absolute path of the loaded file, or "" when
// none was found and the process environment is used as is.
func LoadDotEnv() string {
	envPaths := []string{".env", "../../.env"}

	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		envPaths = append(envPaths,
			filepath.Join(parentDir, ".env"),
			filepath.Join(filepath.Dir(parentDir), ".env"),
		)
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		// existing variables win over the file
		if err := godotenv.Load(envPath); err == nil {
			absPath, _ := filepath.Abs(envPath)
			return absPath
		}
	}
	return ""
}
