package mongo

import "errors"

var (
	ErrConnectFailed     = errors.New("mongo.connect_failed")
	ErrHealthcheckFailed = errors.New("mongo.healthcheck_failed")
)
