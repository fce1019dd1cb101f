package tickler_test

import (
	"context"
	"fmt"

	"github.com/aretw0/tickler"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
)

func Example() {
	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return domain.ModelResponse{Body: []byte(`{"function_calls": [
			{"tool_name": "create-calendar-reminder", "parameters": {"subject": "Dentist", "start_datetime": "2024-03-08T10:00:00"}},
			{"tool_name": "order-pizza", "parameters": {}}
		]}`)}, nil
	})

	engine, err := tickler.New(model,
		tickler.WithHandler(domain.ToolCreateCalendarReminder, func(ctx context.Context, params map[string]any) error {
			fmt.Println("reminder:", params[domain.ParamSubject])
			return nil
		}),
	)
	if err != nil {
		panic(err)
	}

	result, err := engine.RunText(context.Background(), "Dentist next Friday at 10, and get a pizza")
	if err != nil {
		panic(err)
	}

	fmt.Println("state:", result.State)
	for _, o := range result.Outcomes {
		fmt.Println(o.Item.ToolName, o.Status)
	}

	// Output:
	// reminder: Dentist
	// state: completed
	// create-calendar-reminder succeeded
	// order-pizza skipped
}
