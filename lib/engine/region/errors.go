package region

import "errors"

var errBadCounterWidth = errors.New("region: stored counter value is not 8 bytes")
