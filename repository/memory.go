package repository

import (
	"context"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

// Memory is a Store kept in process. Documents are held as bson so filters
// see the same field names as mongo. Supported filter operators: plain
// equality (array fields match any element), regexes, $ne, $in, $size, $gt,
// $gte, $lt, $lte, $and and $or.
type Memory[T any, PT interface {
	*T
	models.Document
}] struct {
	mu     sync.Mutex
	entity string
	order  []primitive.ObjectID
	docs   map[primitive.ObjectID]bson.M
	unique [][]string
}

func NewMemory[T any, PT interface {
	*T
	models.Document
}](entity string) *Memory[T, PT] {
	return &Memory[T, PT]{entity: entity, docs: map[primitive.ObjectID]bson.M{}}
}

// Unique rejects writes that duplicate the given field combination,
// the way a unique index does.
func (m *Memory[T, PT]) Unique(fields ...string) *Memory[T, PT] {
	m.unique = append(m.unique, fields)
	return m
}

func (m *Memory[T, PT]) Find(_ context.Context, filter bson.M) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []T{}
	for i := len(m.order) - 1; i >= 0; i-- {
		raw := m.docs[m.order[i]]
		if !matches(raw, filter) {
			continue
		}
		doc, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (m *Memory[T, PT]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	doc, err := m.FindOne(ctx, bson.M{"_id": id})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.NotFound("%s with ID %s not found", m.entity, id.Hex())
	}
	return doc, err
}

func (m *Memory[T, PT]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	docs, err := m.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperr.NotFound("%s not found", m.entity)
	}
	return &docs[len(docs)-1], nil
}

func (m *Memory[T, PT]) Insert(_ context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := PT(doc)
	if p.GetID().IsZero() {
		p.SetID(primitive.NewObjectID())
	}
	if _, ok := m.docs[p.GetID()]; ok {
		return apperr.Conflict("%s already exists", m.entity)
	}
	prev := *doc
	p.Touch(now())

	raw, err := encode(doc)
	if err != nil {
		*doc = prev
		return err
	}
	if m.violatesUnique(raw, p.GetID()) {
		*doc = prev
		return apperr.Conflict("%s already exists", m.entity)
	}
	m.docs[p.GetID()] = raw
	m.order = append(m.order, p.GetID())
	return nil
}

func (m *Memory[T, PT]) Replace(_ context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := PT(doc)
	stored, ok := m.docs[p.GetID()]
	if !ok {
		return apperr.NotFound("%s with ID %s not found", m.entity, p.GetID().Hex())
	}
	if prev := p.GetUpdatedAt(); !prev.IsZero() && !equal(stored["updatedAt"], primitive.NewDateTimeFromTime(prev)) {
		return apperr.Conflict("%s was modified by another request, reload it and retry", m.entity)
	}

	prev := *doc
	p.Touch(nextVersion(now(), p.GetUpdatedAt()))
	raw, err := encode(doc)
	if err != nil {
		*doc = prev
		return err
	}
	if m.violatesUnique(raw, p.GetID()) {
		*doc = prev
		return apperr.Conflict("%s already exists", m.entity)
	}
	m.docs[p.GetID()] = raw
	return nil
}

func (m *Memory[T, PT]) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return apperr.NotFound("%s with ID %s not found", m.entity, id.Hex())
	}
	delete(m.docs, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory[T, PT]) ToggleStatus(_ context.Context, id primitive.ObjectID) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.docs[id]
	if !ok {
		return nil, apperr.NotFound("%s with ID %s not found", m.entity, id.Hex())
	}
	status, _ := raw["status"].(bool)
	raw["status"] = !status
	raw["updatedAt"] = primitive.NewDateTimeFromTime(now())
	return decode[T](raw)
}

func (m *Memory[T, PT]) Count(ctx context.Context, filter bson.M) (int64, error) {
	docs, err := m.Find(ctx, filter)
	return int64(len(docs)), err
}

func (m *Memory[T, PT]) Exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := m.Count(ctx, filter)
	return n > 0, err
}

func (m *Memory[T, PT]) violatesUnique(raw bson.M, self primitive.ObjectID) bool {
	for _, fields := range m.unique {
		for id, other := range m.docs {
			if id == self {
				continue
			}
			same := true
			for _, f := range fields {
				if raw[f] == nil || !equal(raw[f], other[f]) {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

func encode(doc any) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, apperr.Internal(err, "encode document")
	}
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Internal(err, "encode document")
	}
	return raw, nil
}

func decode[T any](raw bson.M) (*T, error) {
	data, err := bson.Marshal(raw)
	if err != nil {
		return nil, apperr.Internal(err, "decode document")
	}
	var doc T
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Internal(err, "decode document")
	}
	return &doc, nil
}

func matches(doc bson.M, filter bson.M) bool {
	for key, want := range filter {
		if key == "$and" {
			parts, _ := want.(bson.A)
			for _, part := range parts {
				if f, ok := part.(bson.M); !ok || !matches(doc, f) {
					return false
				}
			}
			continue
		}
		if key == "$or" {
			alts, _ := want.(bson.A)
			hit := false
			for _, alt := range alts {
				if f, ok := alt.(bson.M); ok && matches(doc, f) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
			continue
		}

		got := lookup(doc, key)
		if ops, ok := want.(bson.M); ok {
			if !matchOps(got, ops) {
				return false
			}
			continue
		}
		if !holds(got, want) {
			return false
		}
	}
	return true
}

// lookup resolves a dotted path. Through an array it collects the field of
// every element, so "articles.article" lists each line's article.
func lookup(doc bson.M, path string) any {
	head, rest, nested := strings.Cut(path, ".")
	v := doc[head]
	if !nested {
		return v
	}
	switch x := v.(type) {
	case bson.M:
		return lookup(x, rest)
	case bson.A:
		var out bson.A
		for _, e := range x {
			m, ok := e.(bson.M)
			if !ok {
				continue
			}
			switch y := lookup(m, rest).(type) {
			case nil:
			case bson.A:
				out = append(out, y...)
			default:
				out = append(out, y)
			}
		}
		return out
	}
	return nil
}

func matchOps(got any, ops bson.M) bool {
	for op, arg := range ops {
		switch op {
		case "$ne":
			if holds(got, arg) {
				return false
			}
		case "$in":
			found := false
			for _, v := range elements(arg) {
				if holds(got, v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "$size":
			arr, _ := got.(bson.A)
			if !equal(len(arr), arg) {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			c, ok := compare(got, arg)
			if !ok {
				return false
			}
			if (op == "$gt" && c <= 0) || (op == "$gte" && c < 0) ||
				(op == "$lt" && c >= 0) || (op == "$lte" && c > 0) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// elements lists the members of an $in argument, which may be a bson.A or
// any typed slice such as []primitive.ObjectID.
func elements(arg any) []any {
	if list, ok := arg.(bson.A); ok {
		return list
	}
	rv := reflect.ValueOf(arg)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// compare orders a stored value against a filter argument. Only dates and
// numbers are ordered.
func compare(got, arg any) (int, bool) {
	if t, ok := arg.(time.Time); ok {
		arg = primitive.NewDateTimeFromTime(t)
	}
	if d, ok := got.(primitive.DateTime); ok {
		a, ok := arg.(primitive.DateTime)
		if !ok {
			return 0, false
		}
		return cmp(float64(d), float64(a)), true
	}
	x, ok1 := number(got)
	y, ok2 := number(arg)
	if !ok1 || !ok2 {
		return 0, false
	}
	return cmp(x, y), true
}

func cmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// number and text see through named types such as models.SaleStatus,
// which reach filters unconverted. Stored amounts come back as decimals.
func number(v any) (float64, bool) {
	switch d := v.(type) {
	case primitive.Decimal128:
		n, err := decimal.NewFromString(d.String())
		return n.InexactFloat64(), err == nil
	case models.Amount:
		return d.InexactFloat64(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func text(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// holds is equality, or membership when the stored field is an array.
func holds(got, want any) bool {
	if re, ok := want.(primitive.Regex); ok {
		return matchRegex(got, re)
	}
	if arr, ok := got.(bson.A); ok {
		for _, v := range arr {
			if equal(v, want) {
				return true
			}
		}
		return false
	}
	return equal(got, want)
}

func matchRegex(got any, re primitive.Regex) bool {
	pattern := re.Pattern
	if strings.Contains(re.Options, "i") {
		pattern = "(?i)" + pattern
	}
	r, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	if arr, ok := got.(bson.A); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && r.MatchString(s) {
				return true
			}
		}
		return false
	}
	s, ok := got.(string)
	return ok && r.MatchString(s)
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	if x, ok := text(a); ok {
		if y, ok := text(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

// MemoryStock is a StockStore kept in process.
type MemoryStock struct {
	mu  sync.Mutex
	qty map[primitive.ObjectID]int64
}

func NewMemoryStock() *MemoryStock {
	return &MemoryStock{qty: map[primitive.ObjectID]int64{}}
}

func (s *MemoryStock) Set(article primitive.ObjectID, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qty[article] = qty
}

func (s *MemoryStock) Quantity(article primitive.ObjectID) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.qty[article]
	return q, ok
}

func (s *MemoryStock) FindByArticle(_ context.Context, article primitive.ObjectID) (*models.Stock, error) {
	q, ok := s.Quantity(article)
	if !ok {
		return nil, apperr.NotFound("No stock found for article %s", article.Hex())
	}
	return &models.Stock{Article: article, Stock: q}, nil
}

func (s *MemoryStock) Decrement(_ context.Context, article primitive.ObjectID, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.qty[article]
	if !ok {
		return apperr.NotFound("No stock found for article %s", article.Hex())
	}
	if q < qty {
		return ErrInsufficientStock
	}
	s.qty[article] = q - qty
	return nil
}

func (s *MemoryStock) Increment(_ context.Context, article primitive.ObjectID, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qty[article] += qty
	return nil
}

func (s *MemoryStock) SetQuantity(_ context.Context, article primitive.ObjectID, qty int64) (*models.Stock, error) {
	if qty < 0 {
		return nil, apperr.Validation("stock cannot be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.qty[article]; !ok {
		return nil, apperr.NotFound("No stock found for article %s", article.Hex())
	}
	s.qty[article] = qty
	return &models.Stock{Article: article, Stock: qty}, nil
}

func (s *MemoryStock) List(_ context.Context) ([]models.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Stock, 0, len(s.qty))
	for article, q := range s.qty {
		out = append(out, models.Stock{Article: article, Stock: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Article.Hex() < out[j].Article.Hex() })
	return out, nil
}

func (s *MemoryStock) Quantities(_ context.Context, articles []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]int64, len(articles))
	for _, a := range articles {
		if q, ok := s.qty[a]; ok {
			out[a] = q
		}
	}
	return out, nil
}

func (s *MemoryStock) DeleteByArticle(_ context.Context, article primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.qty, article)
	return nil
}

// MemoryCounters is a ReferenceAllocator kept in process.
type MemoryCounters struct {
	mu  sync.Mutex
	seq map[string]int64
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{seq: map[string]int64{}}
}

func (c *MemoryCounters) Next(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq[name]++
	return c.seq[name], nil
}

// MemoryLinker is a Linker kept in process.
type MemoryLinker struct {
	mu       sync.Mutex
	entity   string
	children map[primitive.ObjectID][]primitive.ObjectID
}

func NewMemoryLinker(entity string, parents ...primitive.ObjectID) *MemoryLinker {
	l := &MemoryLinker{entity: entity, children: map[primitive.ObjectID][]primitive.ObjectID{}}
	for _, p := range parents {
		l.children[p] = nil
	}
	return l
}

func (l *MemoryLinker) Children(parent primitive.ObjectID) []primitive.ObjectID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]primitive.ObjectID(nil), l.children[parent]...)
}

func (l *MemoryLinker) Add(_ context.Context, parent, child primitive.ObjectID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kids, ok := l.children[parent]
	if !ok {
		return apperr.NotFound("%s with ID %s not found", l.entity, parent.Hex())
	}
	for _, k := range kids {
		if k == child {
			return nil
		}
	}
	l.children[parent] = append(kids, child)
	return nil
}

func (l *MemoryLinker) Remove(_ context.Context, parent, child primitive.ObjectID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kids, ok := l.children[parent]
	if !ok {
		return apperr.NotFound("%s with ID %s not found", l.entity, parent.Hex())
	}
	l.children[parent] = without(kids, child)
	return nil
}

func (l *MemoryLinker) RemoveEverywhere(_ context.Context, child primitive.ObjectID) ([]primitive.ObjectID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var parents []primitive.ObjectID
	for p, kids := range l.children {
		rest := without(kids, child)
		if len(rest) != len(kids) {
			parents = append(parents, p)
		}
		l.children[p] = rest
	}
	return parents, nil
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// MemoryClients is a Client store with its purchase ledger, kept in process.
type MemoryClients struct {
	*Memory[models.Client, *models.Client]
}

func NewMemoryClients() *MemoryClients {
	return &MemoryClients{Memory: NewMemory[models.Client]("Client").Unique("email").Unique("phone")}
}

func (c *MemoryClients) AddPurchase(ctx context.Context, client, sale primitive.ObjectID) error {
	return c.editPurchases(ctx, client, func(p []primitive.ObjectID) []primitive.ObjectID {
		for _, id := range p {
			if id == sale {
				return p
			}
		}
		return append(p, sale)
	})
}

func (c *MemoryClients) RemovePurchase(ctx context.Context, client, sale primitive.ObjectID) error {
	return c.editPurchases(ctx, client, func(p []primitive.ObjectID) []primitive.ObjectID {
		return without(p, sale)
	})
}

func (c *MemoryClients) editPurchases(ctx context.Context, client primitive.ObjectID, fn func([]primitive.ObjectID) []primitive.ObjectID) error {
	doc, err := c.FindByID(ctx, client)
	if err != nil {
		return err
	}
	doc.Purchases = fn(doc.Purchases)
	return c.Replace(ctx, doc)
}

// MemoryIdentity resolves identities from in-process users, roles and
// permissions.
type MemoryIdentity struct {
	Users       *Memory[models.User, *models.User]
	Roles       *Memory[models.Role, *models.Role]
	Permissions *Memory[models.Permission, *models.Permission]
}

func (m *MemoryIdentity) Identity(ctx context.Context, userID primitive.ObjectID) (*models.Identity, error) {
	u, err := m.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	id := &models.Identity{User: u.Public()}
	role, err := m.Roles.FindByID(ctx, u.Role)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return id, nil
		}
		return nil, err
	}
	id.RoleName = role.RoleName
	for _, pid := range role.Permissions {
		p, err := m.Permissions.FindByID(ctx, pid)
		if err != nil {
			continue
		}
		id.Permissions = append(id.Permissions, p.PermissionName)
	}
	return id, nil
}

var (
	_ Store[models.Article] = (*Memory[models.Article, *models.Article])(nil)
	_ StockStore            = (*MemoryStock)(nil)
	_ StockView             = (*MemoryStock)(nil)
	_ ReferenceAllocator    = (*MemoryCounters)(nil)
	_ Linker                = (*MemoryLinker)(nil)
	_ ClientLedger          = (*MemoryClients)(nil)
	_ IdentityStore         = (*MemoryIdentity)(nil)
)
