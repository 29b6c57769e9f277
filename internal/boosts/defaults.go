package boosts

// DefaultTypes is the catalog shipped with the panel.
func DefaultTypes() []BoostType {
	return []BoostType{
		{
			ID:                 "performance",
			Name:               "Performance Boost",
			Description:        "Balanced boost to RAM and CPU",
			Icon:               "zap",
			ResourceMultiplier: Multiplier{RAM: 1.5, CPU: 1.5, Disk: 1.0},
			Prices:             map[string]int64{"1h": 150, "6h": 750, "24h": 2500},
		},
		{
			ID:                 "memory",
			Name:               "Memory Boost",
			Description:        "Doubles available RAM",
			Icon:               "memory-stick",
			ResourceMultiplier: Multiplier{RAM: 2.0, CPU: 1.0, Disk: 1.0},
			Prices:             map[string]int64{"1h": 100, "6h": 500, "24h": 1800},
		},
		{
			ID:                 "cpu",
			Name:               "CPU Boost",
			Description:        "Doubles the CPU limit",
			Icon:               "cpu",
			ResourceMultiplier: Multiplier{RAM: 1.0, CPU: 2.0, Disk: 1.0},
			Prices:             map[string]int64{"1h": 120, "6h": 600, "24h": 2000},
		},
		{
			ID:                 "storage",
			Name:               "Storage Boost",
			Description:        "Doubles disk space",
			Icon:               "hard-drive",
			ResourceMultiplier: Multiplier{RAM: 1.0, CPU: 1.0, Disk: 2.0},
			Prices:             map[string]int64{"1h": 80, "6h": 400, "24h": 1400},
		},
		{
			ID:                 "extreme",
			Name:               "Extreme Boost",
			Description:        "Doubles RAM and CPU, adds 50% disk",
			Icon:               "rocket",
			ResourceMultiplier: Multiplier{RAM: 2.0, CPU: 2.0, Disk: 1.5},
			Prices:             map[string]int64{"1h": 300, "6h": 1500, "24h": 5000},
		},
	}
}
