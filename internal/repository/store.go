package repository

// Store 聚合全部只读仓库
type Store struct {
	*VehicleRepository
	*DeviceRepository
	*EventRepository
	*CodeRepository
}

// NewStore 基于同一个执行器创建全部仓库
func NewStore(db Executor) *Store {
	return &Store{
		VehicleRepository: NewVehicleRepository(db),
		DeviceRepository:  NewDeviceRepository(db),
		EventRepository:   NewEventRepository(db),
		CodeRepository:    NewCodeRepository(db),
	}
}
