// Package chromemstore хранит индекс в коллекции chromem-go.
package chromemstore

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"rag_chat/internal/chunker"
	"rag_chat/internal/fileutils"
	"rag_chat/internal/index"
	"rag_chat/internal/shared"
)

const (
	collectionName = "docs"
	// Служебная коллекция с одним документом: размерность и число записей
	metaCollection = "meta"
	metaID         = "index"
	// FileName экспорт базы chromem (gob + gzip)
	FileName = "chromem.gob.gz"

	keySource    = "source"
	keyIndex     = "chunk_index"
	keyStart     = "start"
	keyEnd       = "end"
	keyOrdinal   = "ordinal"
	keyEmbedding = "embedding"
	keyDimension = "dimension"
	keyCount     = "count"
)

var errNoEmbedder = errors.New("chromemstore: embeddings must be computed before Add")

// Store реализует index.Store поверх chromem.DB
type Store struct {
	mu        sync.RWMutex
	db        *chromem.DB
	coll      *chromem.Collection
	dimension int
	count     int
}

var _ index.Store = (*Store)(nil)

// New создаёт пустую in-memory коллекцию
func New() (*Store, error) {
	db := chromem.NewDB()
	coll, err := db.CreateCollection(collectionName, map[string]string{}, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Store{db: db, coll: coll}, nil
}

// Эмбеддинги всегда считает builder, коллекции своя функция не нужна
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

// Exists true, если в location лежит экспорт chromem
func Exists(location string) bool {
	return fileutils.FileExists(filepath.Join(location, FileName))
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Store) Add(ctx context.Context, entries []index.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		dim = len(entries[0].Embedding)
	}
	if dim == 0 {
		return shared.Errorf(shared.KindDimensionMismatch, "entry %s has empty embedding", entries[0].Chunk.ID)
	}

	docs := make([]chromem.Document, 0, len(entries))
	for i, e := range entries {
		if len(e.Embedding) != dim {
			return shared.Errorf(shared.KindDimensionMismatch,
				"entry %s has dimension %d, index expects %d", e.Chunk.ID, len(e.Embedding), dim)
		}
		md := make(map[string]string, len(e.Metadata)+5)
		for k, v := range e.Metadata {
			md[k] = v
		}
		md[keySource] = e.Chunk.Source
		md[keyIndex] = strconv.Itoa(e.Chunk.Index)
		md[keyStart] = strconv.Itoa(e.Chunk.Start)
		md[keyEnd] = strconv.Itoa(e.Chunk.End)
		md[keyOrdinal] = strconv.Itoa(s.count + i)
		// chromem хранит только нормализованный float32 вектор, исходный нужен для точной оценки
		md[keyEmbedding] = encodeVector(e.Embedding)

		// chromem нормализует вектор при добавлении, поэтому передаём копию
		emb := make([]float32, len(e.Embedding))
		copy(emb, e.Embedding)

		docs = append(docs, chromem.Document{
			ID:        e.Chunk.ID,
			Metadata:  md,
			Embedding: emb,
			Content:   e.Chunk.Text,
		})
	}

	if err := s.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	s.dimension = dim
	s.count = s.coll.Count()
	return nil
}

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]index.Result, error) {
	if k <= 0 {
		return nil, shared.Errorf(shared.KindConfiguration, "k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil, shared.ErrEmptyIndex
	}
	if len(query) != s.dimension {
		return nil, shared.Errorf(shared.KindDimensionMismatch,
			"query has dimension %d, index expects %d", len(query), s.dimension)
	}

	q := make([]float32, len(query))
	copy(q, query)

	// Берём всю коллекцию: при равных оценках chromem сам решает, кто попадёт в первые k
	res, err := s.coll.QueryEmbedding(ctx, q, s.count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	type ranked struct {
		result  index.Result
		ordinal int
	}
	out := make([]ranked, 0, len(res))
	for _, r := range res {
		ch, ordinal := chunkFromResult(r)
		emb, err := embeddingOf(r)
		if err != nil {
			return nil, shared.NewError(shared.KindCorruptIndex, "decode embedding of "+r.ID, err)
		}
		score := index.CosineSimilarity(query, emb)
		out = append(out, ranked{result: index.Result{Chunk: ch, Score: score}, ordinal: ordinal})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].result.Score != out[j].result.Score {
			return out[i].result.Score > out[j].result.Score
		}
		return out[i].ordinal < out[j].ordinal
	})
	if len(out) > k {
		out = out[:k]
	}

	results := make([]index.Result, len(out))
	for i, r := range out {
		results[i] = r.result
	}
	return results, nil
}

func chunkFromResult(r chromem.Result) (chunker.Chunk, int) {
	atoi := func(key string) int {
		v, _ := strconv.Atoi(r.Metadata[key])
		return v
	}
	return chunker.Chunk{
		ID:     r.ID,
		Source: r.Metadata[keySource],
		Index:  atoi(keyIndex),
		Start:  atoi(keyStart),
		End:    atoi(keyEnd),
		Text:   r.Content,
	}, atoi(keyOrdinal)
}

// encodeVector упаковывает float32 little-endian в base64, метаданные chromem только строки
func encodeVector(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeVector(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding has %d bytes, not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

func embeddingOf(r chromem.Result) ([]float32, error) {
	raw, ok := r.Metadata[keyEmbedding]
	if !ok {
		return r.Embedding, nil
	}
	return decodeVector(raw)
}

// Persist экспортирует коллекцию вместе со служебной записью в один временный файл
// и переименовывает его, так что старый индекс заменяется целиком
func (s *Store) Persist(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := s.writeMeta(); err != nil {
		return err
	}

	path := filepath.Join(location, FileName)
	tmp := path + ".tmp"
	if err := s.db.ExportToFile(tmp, true, "", collectionName, metaCollection); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("export chromem db: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write chromem db: %w", err)
	}
	return nil
}

func (s *Store) writeMeta() error {
	if err := s.db.DeleteCollection(metaCollection); err != nil {
		return fmt.Errorf("reset meta collection: %w", err)
	}
	coll, err := s.db.CreateCollection(metaCollection, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("create meta collection: %w", err)
	}
	return coll.AddDocument(context.Background(), chromem.Document{
		ID: metaID,
		Metadata: map[string]string{
			keyDimension: strconv.Itoa(s.dimension),
			keyCount:     strconv.Itoa(s.count),
		},
		Embedding: []float32{1},
	})
}

// Load импортирует коллекцию, сохранённую Persist
func Load(ctx context.Context, location string) (*Store, error) {
	path := filepath.Join(location, FileName)
	if !fileutils.FileExists(path) {
		return nil, shared.NewError(shared.KindIndexNotFound, "no chromem index at "+location, os.ErrNotExist)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, "", collectionName, metaCollection); err != nil {
		return nil, shared.NewError(shared.KindCorruptIndex, "import "+path, err)
	}
	coll := db.GetCollection(collectionName, noEmbed)
	if coll == nil {
		return nil, shared.Errorf(shared.KindCorruptIndex, "collection %q missing in %s", collectionName, path)
	}
	dimension, count, err := readMeta(ctx, db)
	if err != nil {
		return nil, shared.NewError(shared.KindCorruptIndex, "read chromem metadata", err)
	}
	if coll.Count() != count {
		return nil, shared.Errorf(shared.KindCorruptIndex, "collection has %d documents, metadata records %d", coll.Count(), count)
	}
	if count > 0 && dimension <= 0 {
		return nil, shared.Errorf(shared.KindCorruptIndex, "index has %d entries but no dimension", count)
	}

	s := &Store{db: db, coll: coll, dimension: dimension, count: count}
	if count > 0 {
		// Пробный запрос: chromem откажет, если длина векторов не совпадает с записанной
		probe := make([]float32, dimension)
		probe[0] = 1
		if _, err := coll.QueryEmbedding(ctx, probe, count, nil, nil); err != nil {
			return nil, shared.NewError(shared.KindCorruptIndex, "stored embeddings disagree with recorded dimension", err)
		}
	}
	return s, nil
}

func readMeta(ctx context.Context, db *chromem.DB) (dimension, count int, err error) {
	coll := db.GetCollection(metaCollection, noEmbed)
	if coll == nil {
		return 0, 0, fmt.Errorf("collection %q missing", metaCollection)
	}
	doc, err := coll.GetByID(ctx, metaID)
	if err != nil {
		return 0, 0, err
	}
	if dimension, err = strconv.Atoi(doc.Metadata[keyDimension]); err != nil {
		return 0, 0, fmt.Errorf("dimension: %w", err)
	}
	if count, err = strconv.Atoi(doc.Metadata[keyCount]); err != nil {
		return 0, 0, fmt.Errorf("count: %w", err)
	}
	return dimension, count, nil
}
