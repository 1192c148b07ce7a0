package entity

import "errors"

var (
	errIDRequired          = errors.New("ID is required")
	errNameRequired        = errors.New("name is required")
	errWorkspaceIDRequired = errors.New("workspace ID is required")
	errInvalidPageKind     = errors.New("invalid page kind")
	errDatabaseIDRequired  = errors.New("database page ID is required")
)
