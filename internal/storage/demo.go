package storage

import "greenbite/internal/models"

var demoUsers = []models.LeaderboardEntry{
	{UserID: "user_1", UserName: "Aarav", TotalCO2Saved: 24.5},
	{UserID: "user_2", UserName: "Diya", TotalCO2Saved: 18.2},
}

const demoTrendUser = "user_1"

var demoTrend = []models.TrendData{
	{Date: "2023-10-01", CO2Emitted: 4.2},
	{Date: "2023-10-02", CO2Emitted: 3.5},
	{Date: "2023-10-03", CO2Emitted: 5.1},
	{Date: "2023-10-04", CO2Emitted: 2.8},
	{Date: "2023-10-05", CO2Emitted: 3.0},
	{Date: "2023-10-06", CO2Emitted: 2.5},
	{Date: "2023-10-07", CO2Emitted: 1.8},
}
