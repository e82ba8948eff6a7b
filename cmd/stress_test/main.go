package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/handler/rpc"
	"github.com/rl1809/storefront/internal/core/domain"
)

// Run against a server whose product productID has exactly initialStock units.
const (
	grpcAddr      = "localhost:50051"
	productID     = 1
	initialStock  = 20
	totalRequests = 50
	firstUserID   = 1000
)

func main() {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	client := rpc.NewOrderServiceClient(conn)

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			ctx = handler.OutgoingIdentity(ctx, domain.Actor{UserID: userID, Roles: []domain.Role{domain.RoleUser}})

			_, err := client.CreateOrder(ctx, &rpc.CreateOrderRequest{
				Items:         []rpc.LineItem{{ProductID: productID, Quantity: 1}},
				RecipientName: fmt.Sprintf("user-%d", userID),
				Address:       "stress test",
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case status.Code(err) == codes.Aborted:
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("user %d: %v", userID, err)
			}
		}(int64(firstUserID + i))
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: exactly %d orders succeeded, %d were rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}
}
