package shared

// Platform capabilities expressed as "resource.action" strings. The catalog
// mirrors what the console UI gates on; the seed script materialises it into
// the permissions table.
const (
	PermUsersView   = "users.view"
	PermUsersCreate = "users.create"
	PermUsersEdit   = "users.edit"
	PermUsersDelete = "users.delete"

	PermProductsView     = "products.view"
	PermProductsCreate   = "products.create"
	PermProductsEdit     = "products.edit"
	PermProductsDelete   = "products.delete"
	PermProductsModerate = "products.moderate"

	PermDealersView    = "dealers.view"
	PermDealersCreate  = "dealers.create"
	PermDealersEdit    = "dealers.edit"
	PermDealersApprove = "dealers.approve"

	PermRolesView   = "roles.view"
	PermRolesManage = "roles.manage"

	PermAnalyticsView = "analytics.view"
	PermSupportView   = "support.view"
)

// AllScopes lists every seeded capability.
func AllScopes() []string {
	return []string{
		PermUsersView, PermUsersCreate, PermUsersEdit, PermUsersDelete,
		PermProductsView, PermProductsCreate, PermProductsEdit, PermProductsDelete, PermProductsModerate,
		PermDealersView, PermDealersCreate, PermDealersEdit, PermDealersApprove,
		PermRolesView, PermRolesManage,
		PermAnalyticsView, PermSupportView,
	}
}
