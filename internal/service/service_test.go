package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alextreichler/coursehub/internal/apperr"
	"github.com/alextreichler/coursehub/internal/models"
	"github.com/alextreichler/coursehub/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testEnv struct {
	store   *store.Store
	catalog *CatalogService
	orders  *OrderService
	summary *SummaryService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.NewStore(":memory:", 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	return &testEnv{
		store:   s,
		catalog: NewCatalogService(s),
		orders:  NewOrderService(s),
		summary: NewSummaryService(s),
	}
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ptr[T any](v T) *T { return &v }

func (e *testEnv) publishedCourse(t *testing.T, title, p string) *models.Course {
	t.Helper()
	ctx := context.Background()
	c, err := e.catalog.CreateCourse(ctx, CourseInput{Title: title, Price: price(p)})
	require.NoError(t, err)
	c, err = e.catalog.UpdateCourse(ctx, c.ID, CoursePatch{Published: ptr(true)})
	require.NoError(t, err)
	return c
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	require.True(t, apperr.Is(err, apperr.KindValidation), "expected validation error, got %v", err)
	return apperr.As(err).Fields
}

func TestCreateCourse_AlwaysDraft(t *testing.T) {
	env := setupTestEnv(t)
	c, err := env.catalog.CreateCourse(context.Background(), CourseInput{
		Title:        "  Go Basics ",
		Subtitle:     "From zero",
		Price:        price("49"),
		ThumbnailURL: "https://img.example/go.png",
	})
	require.NoError(t, err)
	assert.False(t, c.Published)
	assert.Equal(t, "Go Basics", c.Title)
	assert.NotEmpty(t, c.ID)

	published, err := env.catalog.ListCourses(context.Background(), CourseFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestCreateCourse_Validation(t *testing.T) {
	env := setupTestEnv(t)
	tests := []struct {
		name  string
		in    CourseInput
		field string
	}{
		{"empty title", CourseInput{Price: price("1")}, "title"},
		{"blank title", CourseInput{Title: "   ", Price: price("1")}, "title"},
		{"missing price", CourseInput{Title: "Go"}, "price"},
		{"negative price", CourseInput{Title: "Go", Price: price("-0.01")}, "price"},
		{"long title", CourseInput{Title: strings.Repeat("x", 201), Price: price("1")}, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.CreateCourse(context.Background(), tt.in)
			assert.Contains(t, validationFields(t, err), tt.field)
		})
	}

	all, err := env.catalog.ListCourses(context.Background(), CourseFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateCourse_ZeroPriceAllowed(t *testing.T) {
	env := setupTestEnv(t)
	c, err := env.catalog.CreateCourse(context.Background(), CourseInput{Title: "Free", Price: price("0")})
	require.NoError(t, err)
	assert.True(t, c.Price.IsZero())
}

func TestParsePrice(t *testing.T) {
	d, err := ParsePrice(" 49.90 ")
	require.NoError(t, err)
	assert.Equal(t, "49.9", d.String())

	_, err = ParsePrice("forty nine")
	assert.Contains(t, validationFields(t, err), "price")

	d, err = ParsePrice("1.500")
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.String())

	d, err = ParsePrice("999999999999.99")
	require.NoError(t, err)
	assert.Equal(t, "999999999999.99", d.String())
}

func TestParsePrice_RejectsOutOfRange(t *testing.T) {
	for _, raw := range []string{
		"1e9999999",
		"1e99999999",
		"1e-9999999",
		"1000000000000",
		"0.001",
		"12.345",
		strings.Repeat("9", 40),
	} {
		t.Run(raw[:min(len(raw), 12)], func(t *testing.T) {
			start := time.Now()
			_, err := ParsePrice(raw)
			assert.Contains(t, validationFields(t, err), "price")
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestCreateCourse_HugeExponentRejectedBeforeStore(t *testing.T) {
	env := setupTestEnv(t)
	huge := decimal.New(1, 9999999)

	start := time.Now()
	_, err := env.catalog.CreateCourse(context.Background(), CourseInput{Title: "Go", Price: &huge})
	assert.Contains(t, validationFields(t, err), "price")
	assert.Less(t, time.Since(start), time.Second)

	all, err := env.catalog.ListCourses(context.Background(), CourseFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPublishToggleDrivesPublishedListing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	a, err := env.catalog.CreateCourse(ctx, CourseInput{Title: "A", Price: price("10")})
	require.NoError(t, err)
	b, err := env.catalog.CreateCourse(ctx, CourseInput{Title: "B", Price: price("20")})
	require.NoError(t, err)

	publishedIDs := func() []string {
		courses, err := env.catalog.ListCourses(ctx, CourseFilter{PublishedOnly: true})
		require.NoError(t, err)
		ids := []string{}
		for _, c := range courses {
			assert.True(t, c.Published)
			ids = append(ids, c.ID)
		}
		return ids
	}

	assert.Empty(t, publishedIDs())

	_, err = env.catalog.UpdateCourse(ctx, a.ID, CoursePatch{Published: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, publishedIDs())

	// Editing other fields leaves the publish state alone.
	_, err = env.catalog.UpdateCourse(ctx, b.ID, CoursePatch{Title: ptr("B2")})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, publishedIDs())

	_, err = env.catalog.UpdateCourse(ctx, b.ID, CoursePatch{Published: ptr(true)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, publishedIDs())

	_, err = env.catalog.UpdateCourse(ctx, a.ID, CoursePatch{Published: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, publishedIDs())

	all, err := env.catalog.ListCourses(ctx, CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateCourse_PartialUpdate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c, err := env.catalog.CreateCourse(ctx, CourseInput{
		Title:       "Go",
		Subtitle:    "sub",
		Price:       price("49"),
		Description: "desc",
	})
	require.NoError(t, err)

	updated, err := env.catalog.UpdateCourse(ctx, c.ID, CoursePatch{Price: price("59")})
	require.NoError(t, err)
	assert.Equal(t, "59", updated.Price.String())
	assert.Equal(t, "Go", updated.Title)
	assert.Equal(t, "sub", updated.Subtitle)
	assert.Equal(t, "desc", updated.Description)
	assert.False(t, updated.Published)
}

func TestUpdateCourse_Errors(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.catalog.UpdateCourse(ctx, "missing", CoursePatch{Title: ptr("x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	c, err := env.catalog.CreateCourse(ctx, CourseInput{Title: "Go", Price: price("49")})
	require.NoError(t, err)

	_, err = env.catalog.UpdateCourse(ctx, c.ID, CoursePatch{Title: ptr(""), Published: ptr(true)})
	assert.Contains(t, validationFields(t, err), "title")

	_, err = env.catalog.UpdateCourse(ctx, c.ID, CoursePatch{Price: price("-1")})
	assert.Contains(t, validationFields(t, err), "price")

	got, err := env.catalog.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Title)
	assert.Equal(t, "49", got.Price.String())
	assert.False(t, got.Published)
}

func TestDeleteCourse_RemovesLessons(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.publishedCourse(t, "Go", "49")

	_, err := env.catalog.AddLesson(ctx, c.ID, LessonInput{Title: "Intro"})
	require.NoError(t, err)

	require.NoError(t, env.catalog.DeleteCourse(ctx, c.ID))

	_, err = env.catalog.ListLessons(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = env.catalog.DeleteCourse(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	s, err := env.summary.GetSummary(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.TotalLessons)
}

func TestAddLesson(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c, err := env.catalog.CreateCourse(ctx, CourseInput{Title: "Go", Price: price("49")})
	require.NoError(t, err)

	_, err = env.catalog.AddLesson(ctx, c.ID, LessonInput{Title: "", Content: "body"})
	assert.Contains(t, validationFields(t, err), "title")

	lessons, err := env.catalog.ListLessons(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, lessons)

	_, err = env.catalog.AddLesson(ctx, "missing", LessonInput{Title: "Intro"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	second, err := env.catalog.AddLesson(ctx, c.ID, LessonInput{Title: "Second", Order: 2})
	require.NoError(t, err)
	first, err := env.catalog.AddLesson(ctx, c.ID, LessonInput{Title: "First", Order: 1, FreePreview: true, VideoURL: "https://v.example/1"})
	require.NoError(t, err)

	// Order is advisory; negative values are kept and sort first.
	warmup, err := env.catalog.AddLesson(ctx, c.ID, LessonInput{Title: "Warmup", Order: -1})
	require.NoError(t, err)
	assert.Equal(t, -1, warmup.Order)

	lessons, err = env.catalog.ListLessons(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 3)
	assert.Equal(t, warmup.ID, lessons[0].ID)
	assert.Equal(t, -1, lessons[0].Order)
	assert.Equal(t, first.ID, lessons[1].ID)
	assert.True(t, lessons[1].FreePreview)
	assert.Equal(t, "https://v.example/1", lessons[1].VideoURL)
	assert.Equal(t, second.ID, lessons[2].ID)
}

func TestPlaceOrder_DraftCourseIsIneligible(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c, err := env.catalog.CreateCourse(ctx, CourseInput{Title: "Draft", Price: price("10")})
	require.NoError(t, err)

	_, err = env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Ann", BuyerEmail: "ann@x.com"})
	assert.True(t, apperr.Is(err, apperr.KindIneligible))

	page, err := env.orders.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestPlaceOrder_Validation(t *testing.T) {
	env := setupTestEnv(t)
	c := env.publishedCourse(t, "Go", "49")

	_, err := env.orders.PlaceOrder(context.Background(), OrderInput{CourseID: c.ID, BuyerName: " ", BuyerEmail: ""})
	fields := validationFields(t, err)
	assert.Contains(t, fields, "buyer_name")
	assert.Contains(t, fields, "buyer_email")

	_, err = env.orders.PlaceOrder(context.Background(), OrderInput{CourseID: "missing", BuyerName: "Ann", BuyerEmail: "ann@x.com"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	c, err := env.catalog.CreateCourse(ctx, CourseInput{Title: "Go Basics", Price: price("49")})
	require.NoError(t, err)
	published, err := env.catalog.ListCourses(ctx, CourseFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, published)

	_, err = env.catalog.UpdateCourse(ctx, c.ID, CoursePatch{Published: ptr(true)})
	require.NoError(t, err)
	published, err = env.catalog.ListCourses(ctx, CourseFilter{PublishedOnly: true})
	require.NoError(t, err)
	require.Len(t, published, 1)

	order, err := env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Ann", BuyerEmail: "ann@x.com"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)
	assert.Equal(t, "49", order.Price.String())
	assert.Equal(t, "Go Basics", order.CourseTitle)
	assert.Regexp(t, regexp.MustCompile(`^[A-HJ-NP-Z2-9]{8}$`), order.OrderRef)

	_, err = env.catalog.UpdateCourse(ctx, c.ID, CoursePatch{Price: price("59"), Title: ptr("Go Advanced")})
	require.NoError(t, err)

	stored, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "49", stored.Price.String())
	assert.Equal(t, "Go Basics", stored.CourseTitle)

	s, err := env.summary.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalSales)
	assert.Equal(t, "49", s.Revenue.String())
}

func TestGetOrder_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.orders.GetOrder(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSummary_IsPureFunctionOfStore(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	a := env.publishedCourse(t, "A", "19.99")
	b := env.publishedCourse(t, "B", "5")
	_, err := env.catalog.CreateCourse(ctx, CourseInput{Title: "Draft", Price: price("1")})
	require.NoError(t, err)
	_, err = env.catalog.AddLesson(ctx, a.ID, LessonInput{Title: "L1"})
	require.NoError(t, err)
	_, err = env.catalog.AddLesson(ctx, b.ID, LessonInput{Title: "L2"})
	require.NoError(t, err)

	for _, id := range []string{a.ID, a.ID, b.ID} {
		_, err := env.orders.PlaceOrder(ctx, OrderInput{CourseID: id, BuyerName: "Ann", BuyerEmail: "ann@x.com"})
		require.NoError(t, err)
	}

	// Deleting a course drops its lessons but not its sales.
	require.NoError(t, env.catalog.DeleteCourse(ctx, b.ID))

	s, err := env.summary.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalCourses)
	assert.Equal(t, 1, s.PublishedCourses)
	assert.Equal(t, 1, s.TotalLessons)
	assert.Equal(t, 3, s.TotalSales)

	page, err := env.orders.ListOrders(ctx, OrderFilter{Limit: MaxOrderPageSize})
	require.NoError(t, err)
	sum := decimal.Zero
	for _, o := range page.Orders {
		sum = sum.Add(o.Price)
	}
	assert.True(t, sum.Equal(s.Revenue))
	assert.Equal(t, "44.98", s.Revenue.String())
}

func TestListOrders_Paging(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.publishedCourse(t, "Go", "1")

	for i := 0; i < 5; i++ {
		_, err := env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "B", BuyerEmail: fmt.Sprintf("b%d@x.com", i)})
		require.NoError(t, err)
	}

	page, err := env.orders.ListOrders(ctx, OrderFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "b2@x.com", page.Orders[0].BuyerEmail)

	page, err = env.orders.ListOrders(ctx, OrderFilter{Page: -3, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxOrderPageSize, page.Limit)
	assert.Len(t, page.Orders, 5)

	page, err = env.orders.ListOrders(ctx, OrderFilter{BuyerEmail: " B4@X.COM "})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, DefaultOrderPageSize, page.Limit)
}

func TestPlaceOrder_ConcurrentWithUnpublish(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.publishedCourse(t, "Go", "49")

	var (
		g         errgroup.Group
		succeeded atomic.Int32
		unpubAt   atomic.Pointer[time.Time]
	)
	for i := 0; i < 30; i++ {
		g.Go(func() error {
			_, err := env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Ann", BuyerEmail: "ann@x.com"})
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.Is(err, apperr.KindIneligible):
			default:
				return err
			}
			return nil
		})
		if i == 15 {
			g.Go(func() error {
				updated, err := env.catalog.UpdateCourse(ctx, c.ID, CoursePatch{Published: ptr(false)})
				if err != nil {
					return err
				}
				unpubAt.Store(&updated.UpdatedAt)
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())

	page, err := env.orders.ListOrders(ctx, OrderFilter{Limit: MaxOrderPageSize})
	require.NoError(t, err)
	assert.Equal(t, int(succeeded.Load()), page.Total)

	// Every recorded order was committed while the course was still published.
	cutoff := unpubAt.Load()
	require.NotNil(t, cutoff)
	for _, o := range page.Orders {
		assert.False(t, o.CreatedAt.After(*cutoff), "order %s recorded after unpublish", o.ID)
	}

	_, err = env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Ann", BuyerEmail: "ann@x.com"})
	assert.True(t, apperr.Is(err, apperr.KindIneligible))
}

func TestGenerateOrderRef(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := generateOrderRef()
		assert.Len(t, ref, 8)
		assert.NotContains(t, ref, "O")
		assert.NotContains(t, ref, "0")
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 95)
}

func refSequence(refs ...string) func() string {
	var i int
	return func() string {
		ref := refs[min(i, len(refs)-1)]
		i++
		return ref
	}
}

func TestPlaceOrder_RetriesOnReferenceCollision(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.publishedCourse(t, "Go", "49")
	env.orders.newRef = refSequence("AAAAAAAA", "AAAAAAAA", "BBBBBBBB")

	first, err := env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Ann", BuyerEmail: "ann@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAA", first.OrderRef)

	second, err := env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Bob", BuyerEmail: "bob@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBB", second.OrderRef)

	page, err := env.orders.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestPlaceOrder_RepeatedCollisionIsConflict(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.publishedCourse(t, "Go", "49")
	env.orders.newRef = refSequence("AAAAAAAA")

	_, err := env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Ann", BuyerEmail: "ann@x.com"})
	require.NoError(t, err)

	_, err = env.orders.PlaceOrder(ctx, OrderInput{CourseID: c.ID, BuyerName: "Bob", BuyerEmail: "bob@x.com"})
	assert.True(t, apperr.Is(err, apperr.KindStorageConflict), "got %v", err)

	page, err := env.orders.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
