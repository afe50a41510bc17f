package services

import (
	"fmt"

	"github.com/bionicotaku/carcare-services-estimate/internal/models/events"
)

// 以下错误均包装 events.ErrDropped：触发边界记录日志后确认事件，不向事件源抛出。
var (
	ErrMalformedEvent = fmt.Errorf("%w: bucket or object path missing", events.ErrDropped)
	ErrOutsideIntake  = fmt.Errorf("%w: object outside intake prefix", events.ErrDropped)
	ErrNotImage       = fmt.Errorf("%w: object is not an image", events.ErrDropped)
	ErrNoIdentity     = fmt.Errorf("%w: filename carries no user id", events.ErrDropped)
	ErrObjectGone     = fmt.Errorf("%w: object no longer exists", events.ErrDropped)
	ErrMissingShopID  = fmt.Errorf("%w: shop id not found in resource path", events.ErrDropped)
)
