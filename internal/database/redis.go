package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Error("Failed to parse redis url: ", err)
		return nil, err
	}

	cli := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		log.Error("Failed to ping redis: ", err)
		return nil, err
	}

	return cli, nil
}
