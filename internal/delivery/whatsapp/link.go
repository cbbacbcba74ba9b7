package whatsapp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// LinkDevice pareia um novo dispositivo exibindo o QR code no terminal
func LinkDevice(dbPath string) error {
	container, db, err := openSessionStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Remove sessões antigas de pareamentos anteriores; uma sessão
	// invalidada faria a conexão falhar com 401
	oldDevices, err := container.GetAllDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list existing devices: %w", err)
	}
	for _, d := range oldDevices {
		_ = d.Delete(context.Background())
	}

	device := container.NewDevice()
	client := whatsmeow.NewClient(device, waLog.Stdout("Client", "WARN", true))

	// O evento "success" do QR indica só que a leitura foi aceita; o
	// pareamento completa quando o cliente termina a sincronização inicial
	connectedCh := make(chan struct{}, 1)
	client.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case connectedCh <- struct{}{}:
			default:
			}
		}
	})

	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	fmt.Println("QR Code gerado! Escaneie-o com seu WhatsApp:")
	fmt.Println("  WhatsApp > Configurações > Aparelhos conectados > Conectar um aparelho")
	fmt.Println()

	for item := range qrChan {
		switch item.Event {
		case "code":
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			fmt.Println()
			fmt.Println("Aguardando leitura...")
		case "success":
			fmt.Println("\nLeitura aceita, concluindo a sincronização inicial...")

			select {
			case <-connectedCh:
			case <-time.After(30 * time.Second):
				client.Disconnect()
				return fmt.Errorf("tempo esgotado aguardando a sincronização, tente novamente")
			}

			fmt.Printf("Pareado com sucesso! JID: %s\n", client.Store.ID)
			client.Disconnect()
			return nil
		case "timeout":
			client.Disconnect()
			return fmt.Errorf("QR code expirado, execute o comando novamente")
		default:
			client.Disconnect()
			return fmt.Errorf("pareamento falhou: %s", item.Event)
		}
	}

	client.Disconnect()
	return fmt.Errorf("canal de QR encerrado inesperadamente")
}
