package redis_client

import (
	"context"
	"strconv"

	"github.com/morningstar-transit/morningstar/pkg/util"
	"github.com/redis/go-redis/v9"
)

var Client *redis.Client

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

type Options struct {
	Address  string
	Password string
	Database int
}

// OptionsFromEnvironment reads the MORNINGSTAR_REDIS_* variables on top of base
func OptionsFromEnvironment(base Options) (Options, error) {
	options := base
	if options.Address == "" {
		options.Address = defaultConnectionAddress
	}
	if options.Password == "" {
		options.Password = defaultConnectionPassword
	}

	env := util.GetEnvironmentVariables()

	if env["MORNINGSTAR_REDIS_ADDRESS"] != "" {
		options.Address = env["MORNINGSTAR_REDIS_ADDRESS"]
	}

	if env["MORNINGSTAR_REDIS_PASSWORD"] != "" {
		options.Password = env["MORNINGSTAR_REDIS_PASSWORD"]
	}

	if env["MORNINGSTAR_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["MORNINGSTAR_REDIS_DATABASE"]); err == nil {
			options.Database = n
		} else {
			return options, err
		}
	}

	return options, nil
}

func Connect(ctx context.Context, options Options) error {
	options, err := OptionsFromEnvironment(options)
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     options.Address,
		Password: options.Password,
		DB:       options.Database,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}

	Client = client

	return nil
}
