package services

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Store = (*FirestoreStore)(nil)

// FirestoreStore is the production Store. FIRESTORE_EMULATOR_HOST is
// honored by the client library.
type FirestoreStore struct {
	client *firestore.Client
	log    *zap.Logger
}

func NewFirestoreStore(ctx context.Context, projectID string, log *zap.Logger) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStore{
		client: client,
		log:    log,
	}, nil
}

func (fs *FirestoreStore) Close() error {
	return fs.client.Close()
}

func (fs *FirestoreStore) query(q Query) firestore.Query {
	coll := fs.client.Collection(q.Collection)
	fq := coll.Query
	for _, f := range q.Filters {
		if f.Field == DocumentID {
			fq = fq.Where(firestore.DocumentID, string(f.Op), coll.Doc(fmt.Sprint(f.Value)))
			continue
		}
		fq = fq.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	return fq
}

func (fs *FirestoreStore) Listen(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := fs.query(q).Snapshots(ctx)

	go func() {
		defer func() {
			it.Stop()
			fs.log.Debug("listener stopped", zap.String("query", q.Key()))
		}()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				if onError != nil {
					onError(fmt.Errorf("listening to %s: %w", q.Key(), err))
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				if ctx.Err() == nil && onError != nil {
					onError(fmt.Errorf("reading snapshot of %s: %w", q.Key(), err))
				}
				return
			}
			onSnapshot(toDocuments(docs))
		}
	}()

	return cancel, nil
}

func (fs *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	iter := fs.query(q).Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", q.Collection, err)
		}
		docs = append(docs, Document{ID: doc.Ref.ID, Data: doc.Data()})
	}

	return docs, nil
}

func (fs *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := fs.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return Document{}, mapError(collection, id, err)
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (fs *FirestoreStore) Insert(ctx context.Context, collection string, data any) (string, error) {
	ref, _, err := fs.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (fs *FirestoreStore) Set(ctx context.Context, collection, id string, data any) error {
	if _, err := fs.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (fs *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	if _, err := fs.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return mapError(collection, id, err)
	}
	return nil
}

func (fs *FirestoreStore) Remove(ctx context.Context, collection, id string) error {
	if _, err := fs.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func mapError(collection, id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, err)
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, s := range snaps {
		docs = append(docs, Document{ID: s.Ref.ID, Data: s.Data()})
	}
	return docs
}
