package repositories

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/api/iterator"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
)

// FirestoreDeviceRepository 从 users 集合中读取员工设备 token。
type FirestoreDeviceRepository struct {
	client     *firestore.Client
	collection string
	shopField  string
	roleField  string
	tokenField string
	log        *log.Helper
}

// NewFirestoreDeviceRepository 构造 Firestore 设备注册表。
func NewFirestoreDeviceRepository(client *firestore.Client, cfg configloader.NotificationConfig, logger log.Logger) *FirestoreDeviceRepository {
	return &FirestoreDeviceRepository{
		client:     client,
		collection: cfg.UsersCollection,
		shopField:  cfg.ShopField,
		roleField:  cfg.RoleField,
		tokenField: cfg.TokenField,
		log:        log.NewHelper(logger),
	}
}

// ListTokens 执行 {shopField} == shopID AND {roleField} == role 查询。
func (r *FirestoreDeviceRepository) ListTokens(ctx context.Context, shopID, role string) ([]string, error) {
	iter := r.client.Collection(r.collection).
		Where(r.shopField, "==", shopID).
		Where(r.roleField, "==", role).
		Documents(ctx)
	defer iter.Stop()

	var (
		tokens  []string
		seen    = make(map[string]struct{})
		scanned int
	)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: query %s: %w", r.collection, err)
		}
		scanned++
		tokens = appendToken(tokens, seen, tokenFromData(doc.Data(), r.tokenField))
	}
	r.log.WithContext(ctx).Debugf("firestore device lookup: shop=%s role=%s docs=%d tokens=%d", shopID, role, scanned, len(tokens))
	return tokens, nil
}

func tokenFromData(data map[string]any, field string) string {
	if data == nil {
		return ""
	}
	tok, _ := data[field].(string)
	return tok
}
