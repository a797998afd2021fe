package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"tabletalk-go/internal/model"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/events"
	"tabletalk-go/pkg/log"
	"tabletalk-go/pkg/storage"

	"github.com/google/uuid"
)

// MenuView 是公开菜单接口的展示结构，分类下挂菜品。
type MenuView struct {
	Restaurant *model.Restaurant  `json:"restaurant"`
	Categories []MenuCategoryView `json:"categories"`
}

// MenuCategoryView 是菜单展示中的一个分类。
type MenuCategoryView struct {
	Category model.MenuCategory `json:"category"`
	Items    []model.MenuItem   `json:"items"`
}

// MenuItemDetail 是菜品详情的展示结构，带配料与合并后的过敏原。
type MenuItemDetail struct {
	Item      *model.MenuItem `json:"item"`
	Allergens []string        `json:"allergens"`
	ImageURL  string          `json:"imageUrl,omitempty"`
}

// MenuService 定义了菜单目录管理与菜单快照构建的业务操作。
type MenuService interface {
	// 公开读
	GetFullMenu(restaurant *model.Restaurant) (*MenuView, error)
	GetItemDetail(ctx context.Context, itemID string) (*MenuItemDetail, error)
	// 快照
	GetMenuContext(ctx context.Context, restaurantID string) (*model.MenuContext, error)
	// 管理端写
	CreateCategory(ctx context.Context, category *model.MenuCategory) error
	UpdateCategory(ctx context.Context, category *model.MenuCategory) error
	DeleteCategory(ctx context.Context, restaurantID, categoryID string) error
	CreateItem(ctx context.Context, item *model.MenuItem) error
	UpdateItem(ctx context.Context, item *model.MenuItem) error
	DeleteItem(ctx context.Context, restaurantID, itemID string) error
	UploadItemImage(ctx context.Context, itemID string, reader io.Reader, size int64, contentType, filename string) (string, error)
	CreateIngredient(ingredient *model.Ingredient) error
	ListIngredients() ([]model.Ingredient, error)
	LinkIngredient(ctx context.Context, link *model.MenuItemIngredient) error
	UnlinkIngredient(ctx context.Context, restaurantID, itemID, ingredientID string) error
}

// EventPublisher 抽象埋点事件发送方，便于在测试中替换 Kafka 生产者。
type EventPublisher interface {
	PublishEvent(ctx context.Context, event events.InteractionEvent) error
}

type menuService struct {
	menuRepo      repository.MenuRepository
	menuCache     repository.MenuCache
	storageClient *storage.Client
	publisher     EventPublisher
}

// NewMenuService 创建一个新的 MenuService 实例。
func NewMenuService(
	menuRepo repository.MenuRepository,
	menuCache repository.MenuCache,
	storageClient *storage.Client,
	publisher EventPublisher,
) MenuService {
	return &menuService{
		menuRepo:      menuRepo,
		menuCache:     menuCache,
		storageClient: storageClient,
		publisher:     publisher,
	}
}

// GetFullMenu 返回餐厅的完整菜单：启用分类及其可售菜品。
func (s *menuService) GetFullMenu(restaurant *model.Restaurant) (*MenuView, error) {
	categories, err := s.menuRepo.FindActiveCategories(restaurant.ID)
	if err != nil {
		return nil, fmt.Errorf("加载菜单分类失败: %w", err)
	}

	view := &MenuView{Restaurant: restaurant, Categories: make([]MenuCategoryView, 0, len(categories))}
	for _, cat := range categories {
		items, err := s.menuRepo.FindAvailableItemsByCategory(restaurant.ID, cat.ID)
		if err != nil {
			return nil, fmt.Errorf("加载分类 '%s' 的菜品失败: %w", cat.Name, err)
		}
		view.Categories = append(view.Categories, MenuCategoryView{Category: cat, Items: items})
	}
	return view, nil
}

// GetItemDetail 返回菜品详情，过敏原为菜品自身标注与配料标注的并集。
func (s *menuService) GetItemDetail(ctx context.Context, itemID string) (*MenuItemDetail, error) {
	item, err := s.menuRepo.FindItemWithIngredients(itemID)
	if err != nil {
		return nil, err
	}

	detail := &MenuItemDetail{
		Item:      item,
		Allergens: deriveAllergens(item),
	}
	if item.ImageURL != "" && s.storageClient != nil {
		url, err := s.storageClient.PresignedURL(ctx, item.ImageURL, 24*time.Hour)
		if err != nil {
			log.Errorf("生成菜品图片预签名 URL 失败: %v", err)
		} else {
			detail.ImageURL = url
		}
	}
	return detail, nil
}

// deriveAllergens 合并菜品与其配料携带的过敏原标注，去重并排序保证稳定输出。
func deriveAllergens(item *model.MenuItem) []string {
	set := make(map[string]struct{})
	for _, a := range item.AllergenInfo {
		set[a] = struct{}{}
	}
	for _, link := range item.Ingredients {
		if link.Ingredient == nil {
			continue
		}
		for _, a := range link.Ingredient.AllergenInfo {
			set[a] = struct{}{}
		}
	}

	allergens := make([]string, 0, len(set))
	for a := range set {
		allergens = append(allergens, a)
	}
	sort.Strings(allergens)
	return allergens
}

// GetMenuContext 返回菜单快照，优先走 Redis 缓存，未命中时从数据库重建。
func (s *menuService) GetMenuContext(ctx context.Context, restaurantID string) (*model.MenuContext, error) {
	if cached, err := s.menuCache.Get(ctx, restaurantID); err != nil {
		log.Errorf("读取菜单快照缓存失败: %v", err)
	} else if cached != nil {
		return cached, nil
	}

	menuContext, err := s.buildMenuContext(restaurantID)
	if err != nil {
		return nil, err
	}
	if err := s.menuCache.Set(ctx, restaurantID, menuContext); err != nil {
		log.Errorf("写入菜单快照缓存失败: %v", err)
	}
	return menuContext, nil
}

// buildMenuContext 从目录表构建菜单快照，只包含启用分类与可售菜品。
func (s *menuService) buildMenuContext(restaurantID string) (*model.MenuContext, error) {
	categories, err := s.menuRepo.FindActiveCategories(restaurantID)
	if err != nil {
		return nil, fmt.Errorf("加载菜单分类失败: %w", err)
	}

	menuContext := &model.MenuContext{Categories: make([]model.MenuContextCategory, 0, len(categories))}
	for _, cat := range categories {
		items, err := s.menuRepo.FindAvailableItemsByCategory(restaurantID, cat.ID)
		if err != nil {
			return nil, fmt.Errorf("加载分类菜品失败: %w", err)
		}

		ctxCat := model.MenuContextCategory{
			ID:          cat.ID,
			Name:        cat.Name,
			Description: cat.Description,
			Items:       make([]model.MenuContextItem, 0, len(items)),
		}
		for _, item := range items {
			links, err := s.menuRepo.FindItemIngredients(item.ID)
			if err != nil {
				return nil, fmt.Errorf("加载菜品配料失败: %w", err)
			}
			item.Ingredients = links

			ingredientNames := make([]string, 0, len(links))
			for _, link := range links {
				if link.Ingredient != nil {
					ingredientNames = append(ingredientNames, link.Ingredient.Name)
				}
			}

			ctxCat.Items = append(ctxCat.Items, model.MenuContextItem{
				ID:          item.ID,
				Name:        item.Name,
				Description: item.Description,
				Price:       item.Price,
				IsSignature: item.IsSignature,
				SpiceLevel:  item.SpiceLevel,
				Allergens:   deriveAllergens(&item),
				Tags:        item.Tags,
				Ingredients: ingredientNames,
			})
		}
		menuContext.Categories = append(menuContext.Categories, ctxCat)
	}
	return menuContext, nil
}

// afterCatalogWrite 目录写操作后的统一收尾：失效快照缓存并发出菜单变更事件。
func (s *menuService) afterCatalogWrite(ctx context.Context, restaurantID, itemID, action string) {
	if err := s.menuCache.Invalidate(ctx, restaurantID); err != nil {
		log.Errorf("失效菜单快照缓存失败: %v", err)
	}
	if s.publisher == nil {
		return
	}
	event := events.InteractionEvent{
		EventID:      uuid.NewString(),
		RestaurantID: restaurantID,
		EventType:    model.EventMenuChanged,
		EventData:    map[string]interface{}{"action": action, "item_id": itemID},
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		log.Errorf("发送菜单变更事件失败: %v", err)
	}
}

// CreateCategory 创建菜单分类。
func (s *menuService) CreateCategory(ctx context.Context, category *model.MenuCategory) error {
	if category.Name == "" {
		return fmt.Errorf("分类名称不能为空")
	}
	if err := s.menuRepo.CreateCategory(category); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, category.RestaurantID, "", "category_created")
	return nil
}

// UpdateCategory 更新菜单分类。
func (s *menuService) UpdateCategory(ctx context.Context, category *model.MenuCategory) error {
	if err := s.menuRepo.UpdateCategory(category); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, category.RestaurantID, "", "category_updated")
	return nil
}

// DeleteCategory 停用菜单分类（软删除）。
func (s *menuService) DeleteCategory(ctx context.Context, restaurantID, categoryID string) error {
	if err := s.menuRepo.DeactivateCategory(categoryID); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, restaurantID, "", "category_deleted")
	return nil
}

// CreateItem 创建菜品。
func (s *menuService) CreateItem(ctx context.Context, item *model.MenuItem) error {
	if item.Name == "" {
		return fmt.Errorf("菜品名称不能为空")
	}
	if item.Price < 0 {
		return fmt.Errorf("菜品价格不能为负数")
	}
	if err := s.menuRepo.CreateItem(item); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, item.RestaurantID, item.ID, "item_upserted")
	return nil
}

// UpdateItem 更新菜品。
func (s *menuService) UpdateItem(ctx context.Context, item *model.MenuItem) error {
	if err := s.menuRepo.UpdateItem(item); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, item.RestaurantID, item.ID, "item_upserted")
	return nil
}

// DeleteItem 删除菜品及其配料关联。
func (s *menuService) DeleteItem(ctx context.Context, restaurantID, itemID string) error {
	if err := s.menuRepo.DeleteItem(itemID); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, restaurantID, itemID, "item_deleted")
	return nil
}

// UploadItemImage 上传菜品图片到对象存储，并把对象名写回菜品记录。
// 返回一个 24 小时有效的预签名访问 URL。
func (s *menuService) UploadItemImage(ctx context.Context, itemID string, reader io.Reader, size int64, contentType, filename string) (string, error) {
	if s.storageClient == nil {
		return "", fmt.Errorf("对象存储未配置")
	}
	item, err := s.menuRepo.FindItemByID(itemID)
	if err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("menu-items/%s%s", itemID, path.Ext(filename))
	if err := s.storageClient.PutObject(ctx, objectName, reader, size, contentType); err != nil {
		return "", fmt.Errorf("上传菜品图片失败: %w", err)
	}

	item.ImageURL = objectName
	if err := s.menuRepo.UpdateItem(item); err != nil {
		return "", err
	}
	s.afterCatalogWrite(ctx, item.RestaurantID, item.ID, "item_upserted")

	return s.storageClient.PresignedURL(ctx, objectName, 24*time.Hour)
}

// CreateIngredient 创建配料，名称全平台唯一。
func (s *menuService) CreateIngredient(ingredient *model.Ingredient) error {
	if ingredient.Name == "" {
		return fmt.Errorf("配料名称不能为空")
	}
	return s.menuRepo.CreateIngredient(ingredient)
}

// ListIngredients 列出全部启用配料。
func (s *menuService) ListIngredients() ([]model.Ingredient, error) {
	return s.menuRepo.FindActiveIngredients()
}

// LinkIngredient 建立菜品与配料的关联。
func (s *menuService) LinkIngredient(ctx context.Context, link *model.MenuItemIngredient) error {
	item, err := s.menuRepo.FindItemByID(link.MenuItemID)
	if err != nil {
		return err
	}
	if _, err := s.menuRepo.FindIngredientByID(link.IngredientID); err != nil {
		return err
	}
	if err := s.menuRepo.LinkIngredient(link); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, item.RestaurantID, item.ID, "item_upserted")
	return nil
}

// UnlinkIngredient 解除菜品与配料的关联。
func (s *menuService) UnlinkIngredient(ctx context.Context, restaurantID, itemID, ingredientID string) error {
	if err := s.menuRepo.UnlinkIngredient(itemID, ingredientID); err != nil {
		return err
	}
	s.afterCatalogWrite(ctx, restaurantID, itemID, "item_upserted")
	return nil
}
