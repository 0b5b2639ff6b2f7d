package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

const (
	mysqlDuplicateEntry = 1062
	mysqlRowReferenced  = 1451
)

// NormalizeDSN forces the driver options the repositories rely on.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	// affected rows count matched rows, so a same-value update is not reported as missing
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// OpenMySQL connects and pings the database.
func OpenMySQL(ctx context.Context, dsn string) (*sqlx.DB, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", normalized)
	if err != nil {
		return nil, errors.Wrap(err, "connect mysql")
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

type queryer interface {
	sqlx.ExtContext
}

type sqlTxKey struct{}

func conn(ctx context.Context, db *sqlx.DB) queryer {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

func persistence(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrno(err) == mysqlDuplicateEntry }

func idStrings(ids []uuid.UUID) []string {
	sorted := sortedIDs(ids)
	out := make([]string, len(sorted))
	for i, id := range sorted {
		out[i] = id.String()
	}
	return out
}

// MySQLTx runs each unit of work in a READ COMMITTED transaction.
type MySQLTx struct{ db *sqlx.DB }

func NewMySQLTx(db *sqlx.DB) *MySQLTx { return &MySQLTx{db: db} }

func (m *MySQLTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(sqlTxKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return persistence("begin tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistence("commit tx", err)
	}
	return nil
}

type productRow struct {
	ID          uuid.UUID       `db:"id"`
	Name        string          `db:"nombre"`
	SKU         string          `db:"sku"`
	Price       decimal.Decimal `db:"precio"`
	Stock       int64           `db:"stock"`
	Active      bool            `db:"activo"`
	Category    string          `db:"categoria"`
	Subcategory string          `db:"subcategoria"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product(r)
}

const productColumns = `id, nombre, sku, precio, stock, activo, categoria, subcategoria, created_at, updated_at`

// MySQLStore is the catalog side of the MySQL backend.
type MySQLStore struct{ db *sqlx.DB }

func NewMySQLStore(db *sqlx.DB) *MySQLStore { return &MySQLStore{db: db} }

var (
	_ ProductRepository  = (*MySQLStore)(nil)
	_ VariantRepository  = (*MySQLStore)(nil)
	_ MovementRepository = (*MySQLStore)(nil)
)

func (s *MySQLStore) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := sqlx.NamedExecContext(ctx, conn(ctx, s.db),
		`INSERT INTO productos (`+productColumns+`)
		 VALUES (:id, :nombre, :sku, :precio, :stock, :activo, :categoria, :subcategoria, :created_at, :updated_at)`,
		productRow(*p))
	if err != nil {
		return persistence("insert product", err)
	}
	return nil
}

func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var row productRow
	if err := sqlx.GetContext(ctx, conn(ctx, s.db), &row,
		`SELECT `+productColumns+` FROM productos WHERE id = ?`, id.String()); err != nil {
		return nil, persistence("get product", err)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *MySQLStore) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := sqlx.NamedExecContext(ctx, conn(ctx, s.db),
		`UPDATE productos SET nombre = :nombre, sku = :sku, precio = :precio, stock = :stock,
		 activo = :activo, categoria = :categoria, subcategoria = :subcategoria, updated_at = :updated_at
		 WHERE id = :id`, productRow(*p))
	if err != nil {
		return persistence("update product", err)
	}
	return requireRow(res, "update product")
}

func (s *MySQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM productos WHERE id = ?`, id.String())
	if mysqlErrno(err) == mysqlRowReferenced {
		return errors.Wrap(domain.ErrInvalidInput, "product is referenced by orders")
	}
	if err != nil {
		return persistence("delete product", err)
	}
	return requireRow(res, "delete product")
}

func (s *MySQLStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM productos WHERE 1 = 1`
	args := make([]interface{}, 0, 5)
	if f.NameSubstring != "" {
		query += ` AND LOWER(nombre) LIKE ?`
		args = append(args, "%"+lowerLike(f.NameSubstring)+"%")
	}
	if f.Category != "" {
		query += ` AND LOWER(categoria) = LOWER(?)`
		args = append(args, f.Category)
	}
	if f.OnlyActive {
		query += ` AND activo = TRUE`
	}
	if f.MinPrice != nil {
		query += ` AND precio >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query += ` AND precio <= ?`
		args = append(args, *f.MaxPrice)
	}
	query += ` ORDER BY nombre`

	var rows []productRow
	if err := sqlx.SelectContext(ctx, conn(ctx, s.db), &rows, query, args...); err != nil {
		return nil, persistence("list products", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *MySQLStore) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	keys := idStrings(ids)
	if len(keys) == 0 {
		return []domain.Product{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM productos WHERE id IN (?) ORDER BY id FOR UPDATE`, keys)
	if err != nil {
		return nil, errors.Wrap(err, "build lock query")
	}
	q := conn(ctx, s.db)
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, persistence("lock products", err)
	}
	if len(rows) != len(keys) {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *MySQLStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int64) error {
	res, err := conn(ctx, s.db).ExecContext(ctx,
		`UPDATE productos SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`,
		qty, time.Now().UTC(), id.String(), qty)
	if err != nil {
		return persistence("decrement stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("decrement stock", err)
	}
	if n == 0 {
		return ErrStockConflict
	}
	return nil
}

type variantRow struct {
	ID        uuid.UUID           `db:"id"`
	ProductID uuid.UUID           `db:"producto_id"`
	Code      string              `db:"codigo"`
	Name      string              `db:"nombre"`
	Position  int                 `db:"orden"`
	Stock     int64               `db:"stock"`
	Price     decimal.NullDecimal `db:"precio"`
	Active    bool                `db:"activo"`
}

func newVariantRow(v domain.Variant) variantRow {
	row := variantRow{ID: v.ID, ProductID: v.ProductID, Code: v.Code, Name: v.Name,
		Position: v.Position, Stock: v.Stock, Active: v.Active}
	if v.Price != nil {
		row.Price = decimal.NewNullDecimal(*v.Price)
	}
	return row
}

func (r variantRow) toDomain() domain.Variant {
	v := domain.Variant{ID: r.ID, ProductID: r.ProductID, Code: r.Code, Name: r.Name,
		Position: r.Position, Stock: r.Stock, Active: r.Active}
	if r.Price.Valid {
		price := r.Price.Decimal
		v.Price = &price
	}
	return v
}

const variantColumns = `id, producto_id, codigo, nombre, orden, stock, precio, activo`

func (s *MySQLStore) CreateVariant(ctx context.Context, v *domain.Variant) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := sqlx.NamedExecContext(ctx, conn(ctx, s.db),
		`INSERT INTO productos_talles (`+variantColumns+`)
		 VALUES (:id, :producto_id, :codigo, :nombre, :orden, :stock, :precio, :activo)`,
		newVariantRow(*v))
	if err != nil {
		return persistence("insert variant", err)
	}
	return nil
}

func (s *MySQLStore) UpdateVariant(ctx context.Context, v *domain.Variant) error {
	res, err := sqlx.NamedExecContext(ctx, conn(ctx, s.db),
		`UPDATE productos_talles SET codigo = :codigo, nombre = :nombre, orden = :orden,
		 stock = :stock, precio = :precio, activo = :activo WHERE id = :id`,
		newVariantRow(*v))
	if err != nil {
		return persistence("update variant", err)
	}
	return requireRow(res, "update variant")
}

func (s *MySQLStore) GetVariant(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	var row variantRow
	if err := sqlx.GetContext(ctx, conn(ctx, s.db), &row,
		`SELECT `+variantColumns+` FROM productos_talles WHERE id = ?`, id.String()); err != nil {
		return nil, persistence("get variant", err)
	}
	v := row.toDomain()
	return &v, nil
}

func (s *MySQLStore) ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	var rows []variantRow
	if err := sqlx.SelectContext(ctx, conn(ctx, s.db), &rows,
		`SELECT `+variantColumns+` FROM productos_talles WHERE producto_id = ? ORDER BY orden`, productID.String()); err != nil {
		return nil, persistence("list variants", err)
	}
	out := make([]domain.Variant, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type movementRow struct {
	ID        uuid.UUID     `db:"id"`
	ProductID uuid.UUID     `db:"producto_id"`
	OrderID   uuid.NullUUID `db:"pedido_id"`
	Delta     int64         `db:"delta"`
	Before    int64         `db:"stock_anterior"`
	After     int64         `db:"stock_nuevo"`
	Reason    string        `db:"motivo"`
	CreatedAt time.Time     `db:"created_at"`
}

func (s *MySQLStore) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	row := movementRow{ID: m.ID, ProductID: m.ProductID, Delta: m.Delta, Before: m.Before,
		After: m.After, Reason: m.Reason, CreatedAt: m.CreatedAt}
	if m.OrderID != nil {
		row.OrderID = uuid.NullUUID{UUID: *m.OrderID, Valid: true}
	}
	_, err := sqlx.NamedExecContext(ctx, conn(ctx, s.db),
		`INSERT INTO movimientos_stock (id, producto_id, pedido_id, delta, stock_anterior, stock_nuevo, motivo, created_at)
		 VALUES (:id, :producto_id, :pedido_id, :delta, :stock_anterior, :stock_nuevo, :motivo, :created_at)`, row)
	if err != nil {
		return persistence("insert stock movement", err)
	}
	return nil
}

func (s *MySQLStore) ListMovements(ctx context.Context, productID uuid.UUID) ([]domain.StockMovement, error) {
	var rows []movementRow
	if err := sqlx.SelectContext(ctx, conn(ctx, s.db), &rows,
		`SELECT id, producto_id, pedido_id, delta, stock_anterior, stock_nuevo, motivo, created_at
		 FROM movimientos_stock WHERE producto_id = ? ORDER BY created_at, id`, productID.String()); err != nil {
		return nil, persistence("list stock movements", err)
	}
	out := make([]domain.StockMovement, 0, len(rows))
	for _, r := range rows {
		m := domain.StockMovement{ID: r.ID, ProductID: r.ProductID, Delta: r.Delta, Before: r.Before,
			After: r.After, Reason: r.Reason, CreatedAt: r.CreatedAt}
		if r.OrderID.Valid {
			id := r.OrderID.UUID
			m.OrderID = &id
		}
		out = append(out, m)
	}
	return out, nil
}

// MySQLOrders stores clients, order headers and lines.
type MySQLOrders struct{ db *sqlx.DB }

func NewMySQLOrders(db *sqlx.DB) *MySQLOrders { return &MySQLOrders{db: db} }

var (
	_ OrderRepository  = (*MySQLOrders)(nil)
	_ ClientRepository = (*MySQLOrders)(nil)
)

type clientRow struct {
	ID    uuid.UUID      `db:"id"`
	Name  string         `db:"nombre"`
	Phone string         `db:"telefono"`
	Email sql.NullString `db:"email"`
}

func (o *MySQLOrders) CreateClient(ctx context.Context, c *domain.Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := clientRow{ID: c.ID, Name: c.Name, Phone: c.Phone,
		Email: sql.NullString{String: c.Email, Valid: c.Email != ""}}
	_, err := sqlx.NamedExecContext(ctx, conn(ctx, o.db),
		`INSERT INTO clientes (id, nombre, telefono, email) VALUES (:id, :nombre, :telefono, :email)`, row)
	if err != nil {
		return persistence("insert client", err)
	}
	return nil
}

func (o *MySQLOrders) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var row clientRow
	if err := sqlx.GetContext(ctx, conn(ctx, o.db), &row,
		`SELECT id, nombre, telefono, email FROM clientes WHERE id = ?`, id.String()); err != nil {
		return nil, persistence("get client", err)
	}
	return &domain.Client{ID: row.ID, Name: row.Name, Phone: row.Phone, Email: row.Email.String}, nil
}

type orderRow struct {
	ID        uuid.UUID       `db:"id"`
	Number    string          `db:"numero_pedido"`
	ClientID  uuid.UUID       `db:"cliente_id"`
	UserID    uuid.NullUUID   `db:"user_id"`
	Status    string          `db:"estado"`
	Subtotal  decimal.Decimal `db:"subtotal"`
	Total     decimal.Decimal `db:"total"`
	Notes     sql.NullString  `db:"notas"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r orderRow) toDomain() domain.Order {
	o := domain.Order{ID: r.ID, Number: r.Number, ClientID: r.ClientID, Status: domain.OrderStatus(r.Status),
		Subtotal: r.Subtotal, Total: r.Total, Notes: r.Notes.String, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	if r.UserID.Valid {
		id := r.UserID.UUID
		o.UserID = &id
	}
	return o
}

const orderColumns = `id, numero_pedido, cliente_id, user_id, estado, subtotal, total, notas, created_at, updated_at`

func (o *MySQLOrders) Create(ctx context.Context, ord *domain.Order) error {
	if ord.ID == uuid.Nil {
		ord.ID = uuid.New()
	}
	ord.CreatedAt = time.Now().UTC().Truncate(time.Second)
	ord.UpdatedAt = ord.CreatedAt
	row := orderRow{ID: ord.ID, Number: ord.Number, ClientID: ord.ClientID, Status: string(ord.Status),
		Subtotal: ord.Subtotal, Total: ord.Total, Notes: sql.NullString{String: ord.Notes, Valid: ord.Notes != ""},
		CreatedAt: ord.CreatedAt, UpdatedAt: ord.UpdatedAt}
	if ord.UserID != nil {
		row.UserID = uuid.NullUUID{UUID: *ord.UserID, Valid: true}
	}
	_, err := sqlx.NamedExecContext(ctx, conn(ctx, o.db),
		`INSERT INTO pedidos (`+orderColumns+`)
		 VALUES (:id, :numero_pedido, :cliente_id, :user_id, :estado, :subtotal, :total, :notas, :created_at, :updated_at)`, row)
	if isDuplicate(err) {
		return domain.ErrDuplicateOrderNumber
	}
	if err != nil {
		return persistence("insert order", err)
	}
	return nil
}

type lineRow struct {
	ID          uuid.UUID       `db:"id"`
	OrderID     uuid.UUID       `db:"pedido_id"`
	ProductID   uuid.UUID       `db:"producto_id"`
	VariantID   uuid.NullUUID   `db:"talle_id"`
	VariantCode sql.NullString  `db:"talle_codigo"`
	Quantity    int64           `db:"cantidad"`
	UnitPrice   decimal.Decimal `db:"precio_unitario"`
	Subtotal    decimal.Decimal `db:"subtotal"`
}

func (o *MySQLOrders) CreateLines(ctx context.Context, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]lineRow, 0, len(lines))
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		l := lines[i]
		row := lineRow{ID: l.ID, OrderID: l.OrderID, ProductID: l.ProductID, Quantity: l.Quantity,
			UnitPrice: l.UnitPrice, Subtotal: l.Subtotal,
			VariantCode: sql.NullString{String: l.VariantCode, Valid: l.VariantCode != ""}}
		if l.VariantID != nil {
			row.VariantID = uuid.NullUUID{UUID: *l.VariantID, Valid: true}
		}
		rows = append(rows, row)
	}
	_, err := sqlx.NamedExecContext(ctx, conn(ctx, o.db),
		`INSERT INTO detalle_pedido (id, pedido_id, producto_id, talle_id, talle_codigo, cantidad, precio_unitario, subtotal)
		 VALUES (:id, :pedido_id, :producto_id, :talle_id, :talle_codigo, :cantidad, :precio_unitario, :subtotal)`, rows)
	if err != nil {
		return persistence("insert order lines", err)
	}
	return nil
}

func (o *MySQLOrders) getOrder(ctx context.Context, op, suffix string, id uuid.UUID) (*domain.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, conn(ctx, o.db), &row,
		`SELECT `+orderColumns+` FROM pedidos WHERE id = ?`+suffix, id.String()); err != nil {
		return nil, persistence(op, err)
	}
	ord := row.toDomain()
	return &ord, nil
}

func (o *MySQLOrders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return o.getOrder(ctx, "get order", "", id)
}

func (o *MySQLOrders) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return o.getOrder(ctx, "lock order", " FOR UPDATE", id)
}

func (o *MySQLOrders) Lines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLine, error) {
	var rows []lineRow
	if err := sqlx.SelectContext(ctx, conn(ctx, o.db), &rows,
		`SELECT id, pedido_id, producto_id, talle_id, talle_codigo, cantidad, precio_unitario, subtotal
		 FROM detalle_pedido WHERE pedido_id = ? ORDER BY id`, orderID.String()); err != nil {
		return nil, persistence("list order lines", err)
	}
	out := make([]domain.OrderLine, 0, len(rows))
	for _, r := range rows {
		l := domain.OrderLine{ID: r.ID, OrderID: r.OrderID, ProductID: r.ProductID, VariantCode: r.VariantCode.String,
			Quantity: r.Quantity, UnitPrice: r.UnitPrice, Subtotal: r.Subtotal}
		if r.VariantID.Valid {
			id := r.VariantID.UUID
			l.VariantID = &id
		}
		out = append(out, l)
	}
	return out, nil
}

func (o *MySQLOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, at time.Time) error {
	res, err := conn(ctx, o.db).ExecContext(ctx,
		`UPDATE pedidos SET estado = ?, updated_at = ? WHERE id = ?`, string(status), at.UTC(), id.String())
	if err != nil {
		return persistence("update order status", err)
	}
	return requireRow(res, "update order status")
}

func (o *MySQLOrders) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM pedidos`
	args := make([]interface{}, 0, 2)
	if f.Status != "" {
		query += ` WHERE estado = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, conn(ctx, o.db), &rows, query, args...); err != nil {
		return nil, persistence("list orders", err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (o *MySQLOrders) PendingDemand(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	demand := make(map[uuid.UUID]int64)
	keys := idStrings(productIDs)
	if len(keys) == 0 {
		return demand, nil
	}
	query, args, err := sqlx.In(
		`SELECT d.producto_id AS producto_id, SUM(d.cantidad) AS cantidad
		 FROM detalle_pedido d JOIN pedidos p ON p.id = d.pedido_id
		 WHERE p.estado = ? AND d.producto_id IN (?)
		 GROUP BY d.producto_id`, string(domain.StatusPendingContact), keys)
	if err != nil {
		return nil, errors.Wrap(err, "build demand query")
	}
	q := conn(ctx, o.db)
	var rows []struct {
		ProductID uuid.UUID `db:"producto_id"`
		Quantity  int64     `db:"cantidad"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, persistence("pending demand", err)
	}
	for _, r := range rows {
		demand[r.ProductID] = r.Quantity
	}
	return demand, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistence(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func lowerLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range []rune(s) {
		switch c {
		case '%', '_', '\\':
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return strings.ToLower(string(r))
}
