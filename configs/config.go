package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	AppEnv              string
	FacebookAppID       string
	FacebookAppSecret   string
	FacebookRedirectURI string
	YoutubeClientID     string
	YoutubeClientSecret string
	YoutubeRedirectURI  string
	PostgresURI         string
	RedisURI            string
	FrontendURL         string
	R2                  R2
	SecretKey           string
	TokenEncryptionKey  string
	CookieName          string
}

func LoadConfig() *Config {
	return &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		FacebookAppID:       getEnv("FACEBOOK_APP_ID", ""),
		FacebookAppSecret:   getEnv("FACEBOOK_APP_SECRET", ""),
		FacebookRedirectURI: getEnv("FACEBOOK_REDIRECT_URI", "http://localhost:3000/auth/facebook/callback"),
		YoutubeClientID:     getEnv("YOUTUBE_CLIENT_ID", ""),
		YoutubeClientSecret: getEnv("YOUTUBE_CLIENT_SECRET", ""),
		YoutubeRedirectURI:  getEnv("YOUTUBE_REDIRECT_URI", "http://localhost:3000/auth/youtube/callback"),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", ""),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:          getEnv("SECRET_KEY", ""),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
		CookieName:         getEnv("COOKIE_NAME", "socialsync_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
