package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/transitlive/transitlive/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["TRANSITLIVE_REDIS_ADDRESS"] != "" {
		address = env["TRANSITLIVE_REDIS_ADDRESS"]
	}

	if env["TRANSITLIVE_REDIS_PASSWORD"] != "" {
		password = env["TRANSITLIVE_REDIS_PASSWORD"]
	}

	if env["TRANSITLIVE_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["TRANSITLIVE_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	Client = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	})

	err := backoff.Retry(func() error {
		return Client.Ping(context.Background()).Err()
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return err
	}

	QueueConnection, err = rmq.OpenConnectionWithRedisClient("transitlive", Client, nil)
	if err != nil {
		return err
	}

	return nil
}
