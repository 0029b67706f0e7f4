package cache

import "errors"

var (
	ErrStageClosed = errors.New("cache stage already committed or discarded")
)
