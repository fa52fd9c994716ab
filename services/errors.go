package services

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session closed")
	ErrProjectNotFound   = errors.New("project not found")
	ErrDraftNotFound     = errors.New("no work in progress for this session")
	ErrUnknownAssetType  = errors.New("unknown asset type")
	ErrLayerNotFound     = errors.New("layer not found")
	ErrLayerLocked       = errors.New("layer is locked")
	ErrRendererDisabled  = errors.New("no renderer configured")
	ErrInvalidImageInput = errors.New("invalid image source")
)
