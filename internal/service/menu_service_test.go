package service

import (
	"context"
	"testing"

	"tabletalk-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeMenuRepo 是内存版的菜单仓库。
type fakeMenuRepo struct {
	categories  []model.MenuCategory
	items       []model.MenuItem
	ingredients []model.Ingredient
	links       []model.MenuItemIngredient
}

func (f *fakeMenuRepo) CreateCategory(c *model.MenuCategory) error {
	if c.ID == "" {
		c.ID = "cat-new"
	}
	f.categories = append(f.categories, *c)
	return nil
}

func (f *fakeMenuRepo) FindActiveCategories(restaurantID string) ([]model.MenuCategory, error) {
	var out []model.MenuCategory
	for _, c := range f.categories {
		if c.RestaurantID == restaurantID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeMenuRepo) FindCategoryByID(id string) (*model.MenuCategory, error) {
	for _, c := range f.categories {
		if c.ID == id {
			cc := c
			return &cc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMenuRepo) UpdateCategory(c *model.MenuCategory) error { return nil }
func (f *fakeMenuRepo) DeactivateCategory(id string) error         { return nil }

func (f *fakeMenuRepo) CreateItem(i *model.MenuItem) error {
	if i.ID == "" {
		i.ID = "item-new"
	}
	f.items = append(f.items, *i)
	return nil
}

func (f *fakeMenuRepo) FindItemByID(id string) (*model.MenuItem, error) {
	for _, i := range f.items {
		if i.ID == id {
			ii := i
			return &ii, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMenuRepo) FindItemWithIngredients(id string) (*model.MenuItem, error) {
	item, err := f.FindItemByID(id)
	if err != nil {
		return nil, err
	}
	links, _ := f.FindItemIngredients(id)
	item.Ingredients = links
	return item, nil
}

func (f *fakeMenuRepo) FindAvailableItems(restaurantID string) ([]model.MenuItem, error) {
	var out []model.MenuItem
	for _, i := range f.items {
		if i.RestaurantID == restaurantID && i.IsAvailable {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeMenuRepo) FindAvailableItemsByCategory(restaurantID, categoryID string) ([]model.MenuItem, error) {
	var out []model.MenuItem
	for _, i := range f.items {
		if i.RestaurantID == restaurantID && i.IsAvailable && i.CategoryID != nil && *i.CategoryID == categoryID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeMenuRepo) UpdateItem(i *model.MenuItem) error { return nil }
func (f *fakeMenuRepo) DeleteItem(id string) error         { return nil }

func (f *fakeMenuRepo) SearchItems(restaurantID, keyword string, limit int) ([]model.MenuItem, error) {
	return f.FindAvailableItems(restaurantID)
}

func (f *fakeMenuRepo) CreateIngredient(i *model.Ingredient) error { return nil }

func (f *fakeMenuRepo) FindIngredientByID(id string) (*model.Ingredient, error) {
	for _, i := range f.ingredients {
		if i.ID == id {
			ii := i
			return &ii, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMenuRepo) FindActiveIngredients() ([]model.Ingredient, error) {
	return f.ingredients, nil
}

func (f *fakeMenuRepo) LinkIngredient(l *model.MenuItemIngredient) error {
	f.links = append(f.links, *l)
	return nil
}

func (f *fakeMenuRepo) UnlinkIngredient(menuItemID, ingredientID string) error { return nil }

func (f *fakeMenuRepo) FindItemIngredients(menuItemID string) ([]model.MenuItemIngredient, error) {
	var out []model.MenuItemIngredient
	for _, l := range f.links {
		if l.MenuItemID == menuItemID {
			ll := l
			for i := range f.ingredients {
				if f.ingredients[i].ID == ll.IngredientID {
					ing := f.ingredients[i]
					ll.Ingredient = &ing
				}
			}
			out = append(out, ll)
		}
	}
	return out, nil
}

// fakeMenuCache 记录缓存操作。
type fakeMenuCache struct {
	stored       *model.MenuContext
	invalidated  int
	setCalls     int
	getCallCount int
}

func (f *fakeMenuCache) Get(ctx context.Context, restaurantID string) (*model.MenuContext, error) {
	f.getCallCount++
	return f.stored, nil
}

func (f *fakeMenuCache) Set(ctx context.Context, restaurantID string, m *model.MenuContext) error {
	f.setCalls++
	f.stored = m
	return nil
}

func (f *fakeMenuCache) Invalidate(ctx context.Context, restaurantID string) error {
	f.invalidated++
	f.stored = nil
	return nil
}

func strPtr(s string) *string { return &s }

func seededMenuRepo() *fakeMenuRepo {
	return &fakeMenuRepo{
		categories: []model.MenuCategory{
			{ID: "cat-1", RestaurantID: "r-1", Name: "Pasta", IsActive: true},
		},
		items: []model.MenuItem{
			{
				ID:           "item-1",
				RestaurantID: "r-1",
				CategoryID:   strPtr("cat-1"),
				Name:         "Carbonara",
				Price:        14.5,
				IsAvailable:  true,
				AllergenInfo: model.StringList{"egg"},
			},
		},
		ingredients: []model.Ingredient{
			{ID: "ing-1", Name: "Pecorino", AllergenInfo: model.StringList{"dairy"}},
			{ID: "ing-2", Name: "Guanciale", AllergenInfo: model.StringList{"egg"}},
		},
		links: []model.MenuItemIngredient{
			{MenuItemID: "item-1", IngredientID: "ing-1"},
			{MenuItemID: "item-1", IngredientID: "ing-2"},
		},
	}
}

func TestDeriveAllergensUnionsItemAndIngredients(t *testing.T) {
	repo := seededMenuRepo()
	item, err := repo.FindItemWithIngredients("item-1")
	require.NoError(t, err)

	allergens := deriveAllergens(item)

	// "egg" 同时出现在菜品与配料上，只保留一份；结果按字母序
	assert.Equal(t, []string{"dairy", "egg"}, allergens)
}

func TestGetMenuContextBuildsSnapshotAndCaches(t *testing.T) {
	repo := seededMenuRepo()
	cache := &fakeMenuCache{}
	svc := NewMenuService(repo, cache, nil, &fakePublisher{})

	menuContext, err := svc.GetMenuContext(context.Background(), "r-1")

	require.NoError(t, err)
	require.Len(t, menuContext.Categories, 1)
	require.Len(t, menuContext.Categories[0].Items, 1)

	item := menuContext.Categories[0].Items[0]
	assert.Equal(t, "Carbonara", item.Name)
	assert.Equal(t, []string{"dairy", "egg"}, item.Allergens)
	assert.ElementsMatch(t, []string{"Pecorino", "Guanciale"}, item.Ingredients)
	assert.Equal(t, 1, cache.setCalls)

	// 第二次走缓存，不再重建
	_, err = svc.GetMenuContext(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.setCalls)
}

func TestCatalogWritesInvalidateCacheAndPublishEvent(t *testing.T) {
	repo := seededMenuRepo()
	cache := &fakeMenuCache{}
	pub := &fakePublisher{}
	svc := NewMenuService(repo, cache, nil, pub)

	item := &model.MenuItem{RestaurantID: "r-1", Name: "Arrabbiata", Price: 12}
	require.NoError(t, svc.CreateItem(context.Background(), item))

	assert.Equal(t, 1, cache.invalidated)
	require.Len(t, pub.published, 1)
	assert.Equal(t, model.EventMenuChanged, pub.published[0].EventType)
	assert.Equal(t, "item_upserted", pub.published[0].EventData["action"])
}

func TestCreateItemRejectsNegativePrice(t *testing.T) {
	svc := NewMenuService(seededMenuRepo(), &fakeMenuCache{}, nil, &fakePublisher{})

	err := svc.CreateItem(context.Background(), &model.MenuItem{RestaurantID: "r-1", Name: "Bad", Price: -1})

	require.Error(t, err)
}

func TestGetFullMenuGroupsItemsByCategory(t *testing.T) {
	svc := NewMenuService(seededMenuRepo(), &fakeMenuCache{}, nil, &fakePublisher{})

	menu, err := svc.GetFullMenu(testRestaurant())

	require.NoError(t, err)
	require.Len(t, menu.Categories, 1)
	assert.Equal(t, "Pasta", menu.Categories[0].Category.Name)
	require.Len(t, menu.Categories[0].Items, 1)
	assert.Equal(t, "Carbonara", menu.Categories[0].Items[0].Name)
}
