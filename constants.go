package main

import "time"

const (
	defaultPort        = "8080"
	defaultDatabaseURL = "wordsprint.db"
)

const (
	limiterCleanupInterval = 30 * time.Minute
	limiterSoftCap         = 10000
	limiterHardCap         = 50000
)

var defaultAllowedOrigins = []string{
	"https://soma-blog-hugo-shy-bird-7985.fly.dev",
	"http://localhost:8080",
	"http://localhost:1313",
}
