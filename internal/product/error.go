package product

import "errors"

var ErrCatalogUnavailable = errors.New("catalog query failed")
